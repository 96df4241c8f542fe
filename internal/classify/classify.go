// Package classify assigns a category to extracted document text using
// keyword rules. The keyword lists cover English and Amharic terms.
package classify

import (
	"regexp"
	"strings"
)

// Categories the classifier can assign. Other is the catch-all.
const (
	CategoryDemographics = "demographics"
	CategoryHousing      = "housing"
	CategoryIDRegistry   = "id_registry"
	CategoryLandPlans    = "land_plans"
	CategoryOther        = "other"
)

// Categories lists every assignable category.
func Categories() []string {
	return []string{
		CategoryDemographics,
		CategoryHousing,
		CategoryIDRegistry,
		CategoryLandPlans,
		CategoryOther,
	}
}

var categoryKeywords = map[string][]string{
	CategoryDemographics: {
		"name", "age", "gender", "address", "marital", "birth", "nationality",
		"እድሜ", "ጾታ", "ስም", "አድራሻ",
	},
	CategoryHousing: {
		"lease", "rent", "tenant", "landlord", "property", "housing", "contract",
		"ቤት", "ሕንጻ", "ኪራይ", "ኪራይ ስምምነት",
	},
	CategoryIDRegistry: {
		"passport", "id", "identification", "registry", "certificate", "birth certificate",
		"መታወቂያ", "ፓስፖርት", "ማረጋገጫ",
	},
	CategoryLandPlans: {
		"land", "plot", "survey", "deed", "plan", "boundary",
		"መሬት", "እቃ", "እቅድ", "መለኪያ",
	},
}

// minConfidence is the score below which a document falls back to other.
const minConfidence = 0.1

// Classify scores the text against each category's keyword list and returns
// the best match with a confidence in [0,1]. Text with no keyword hits, or
// empty text, returns (other, 0).
func Classify(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return CategoryOther, 0
	}
	lower := strings.ToLower(text)

	best, bestScore := CategoryOther, 0.0
	for _, category := range Categories() {
		keywords := categoryKeywords[category]
		if len(keywords) == 0 {
			continue
		}
		matches := 0
		for _, kw := range keywords {
			if containsKeyword(lower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(keywords)) * 2
		if score > 1 {
			score = 1
		}
		if score > bestScore {
			best, bestScore = category, score
		}
	}

	if bestScore < minConfidence {
		return CategoryOther, 0
	}
	return best, bestScore
}

var wordRegexps = map[string]*regexp.Regexp{}

func init() {
	for _, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if isASCII(kw) {
				wordRegexps[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			}
		}
	}
}

// containsKeyword matches ASCII keywords on word boundaries so that "id" does
// not fire inside "said". Amharic keywords use substring matching since the
// boundary class is ASCII-only.
func containsKeyword(lowerText, keyword string) bool {
	if re, ok := wordRegexps[keyword]; ok {
		return re.MatchString(lowerText)
	}
	return strings.Contains(lowerText, keyword)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
