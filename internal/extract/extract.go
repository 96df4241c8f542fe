// Package extract turns uploaded files into plain text suitable for indexing.
// Supported formats: plain text, markdown, PDF and DOCX.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/obig20/docorganizer/internal/domain"
)

// Result is the extracted text plus whatever structure the format exposes.
type Result struct {
	Text  string
	Title string // first markdown heading, empty otherwise
	Pages int    // pdf only
}

// Extract converts the raw file bytes to plain text based on the filename
// extension. Unknown extensions return domain.ErrUnsupportedFormat.
func Extract(data []byte, filename string) (Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".csv", ".log":
		return Result{Text: strings.TrimSpace(string(data))}, nil
	case ".md", ".markdown":
		return fromMarkdown(data), nil
	case ".pdf":
		return fromPDF(data)
	case ".docx":
		return fromDOCX(data)
	default:
		return Result{}, fmt.Errorf("extract %s: %w", filename, domain.ErrUnsupportedFormat)
	}
}

// Supported reports whether the filename's extension has an extractor.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".csv", ".log", ".md", ".markdown", ".pdf", ".docx":
		return true
	}
	return false
}

var (
	reHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reFence     = regexp.MustCompile("```[\\s\\S]*?```")
	reInline    = regexp.MustCompile("`([^`]+)`")
	reBold      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic    = regexp.MustCompile(`\*(.+?)\*`)
	reImage     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	reLink      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reHTMLTag   = regexp.MustCompile(`<[^>]+>`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
)

func fromMarkdown(data []byte) Result {
	text := string(data)

	var title string
	for _, line := range strings.SplitN(text, "\n", 20) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimPrefix(line, "# ")
			break
		}
	}

	// Keep fenced code content, drop the fences themselves.
	text = reFence.ReplaceAllStringFunc(text, func(s string) string {
		s = strings.TrimPrefix(s, "```")
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		return strings.TrimSpace(strings.TrimSuffix(s, "```"))
	})
	text = reImage.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	text = reBold.ReplaceAllString(text, "$1")
	text = reItalic.ReplaceAllString(text, "$1")
	text = reInline.ReplaceAllString(text, "$1")
	text = reHeading.ReplaceAllString(text, "")
	text = reHTMLTag.ReplaceAllString(text, "")

	return Result{
		Text:  strings.TrimSpace(reBlankRuns.ReplaceAllString(text, "\n\n")),
		Title: title,
	}
}

func fromPDF(data []byte) (Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	pages := r.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Damaged pages are skipped, the rest of the document
			// is still worth indexing.
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	return Result{
		Text:  strings.TrimSpace(reBlankRuns.ReplaceAllString(sb.String(), "\n\n")),
		Pages: pages,
	}, nil
}

var (
	reParaEnd  = regexp.MustCompile(`</w:p>`)
	reDocxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
)

func fromDOCX(data []byte) (Result, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	// The library hands back the raw document XML. Text lives inside
	// <w:t> runs; each closed paragraph becomes one output line.
	content := r.Editable().GetContent()

	var lines []string
	for _, para := range reParaEnd.Split(content, -1) {
		var sb strings.Builder
		for _, m := range reDocxText.FindAllStringSubmatch(para, -1) {
			sb.WriteString(html.UnescapeString(m[1]))
		}
		if line := strings.Join(strings.Fields(sb.String()), " "); line != "" {
			lines = append(lines, line)
		}
	}

	return Result{Text: strings.Join(lines, "\n")}, nil
}
