package snippet

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuild_EmptyQueryTruncates(t *testing.T) {
	content := strings.Repeat("a", 500)
	got := Build(content, "", 200)
	if len(got) > 203 {
		t.Fatalf("snippet too long: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected trailing ellipsis on truncated content")
	}
}

func TestBuild_EmptyQueryShortContent(t *testing.T) {
	got := Build("short text", "", 200)
	if got != "short text" {
		t.Fatalf("expected content unchanged, got %q", got)
	}
}

func TestBuild_CentersOnTerm(t *testing.T) {
	content := strings.Repeat("x", 300) + " tenant obligations " + strings.Repeat("y", 300)
	got := Build(content, "tenant", 200)
	if !strings.Contains(got, "tenant") {
		t.Fatalf("snippet %q does not contain query term", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Error("expected ellipses on both cut boundaries")
	}
}

func TestBuild_TermNearStart(t *testing.T) {
	content := "tenant " + strings.Repeat("z", 400)
	got := Build(content, "tenant", 200)
	if strings.HasPrefix(got, "...") {
		t.Error("window at text start should not have a leading ellipsis")
	}
	if !strings.Contains(got, "tenant") {
		t.Errorf("snippet %q does not contain query term", got)
	}
}

func TestBuild_CaseInsensitiveMatch(t *testing.T) {
	got := Build("The Tenant signed the lease.", "tenant", 200)
	if !strings.Contains(strings.ToLower(got), "tenant") {
		t.Fatalf("snippet %q does not contain query term", got)
	}
}

func TestBuild_ShortTermsIgnored(t *testing.T) {
	content := strings.Repeat("a", 250) + " in it"
	got := Build(content, "in it", 200)
	// Terms of length <= 2 fall back to the head snippet.
	if !strings.HasPrefix(got, "aaa") {
		t.Fatalf("expected head snippet, got %q", got)
	}
}

func TestBuild_TermAbsentFallsBack(t *testing.T) {
	content := strings.Repeat("b", 400)
	got := Build(content, "missing", 200)
	if len(got) > 203 {
		t.Fatalf("snippet too long: %d chars", len(got))
	}
}

func TestBuild_MultibyteContentStaysValidUTF8(t *testing.T) {
	// Ethiopic runes are 3 bytes each; a byte-indexed window would cut one
	// mid-sequence on either side of the matched term.
	amharic := strings.Repeat("የኪራይ ስምምነት በአከራይና በተከራይ መካከል ", 30)
	content := amharic + "tenant obligations " + amharic

	got := Build(content, "tenant", 200)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid UTF-8: %q", got)
	}
	if !strings.Contains(got, "tenant") {
		t.Fatalf("snippet %q does not contain query term", got)
	}

	head := Build(content, "", 200)
	if !utf8.ValidString(head) {
		t.Fatalf("head snippet is not valid UTF-8: %q", head)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(head, "...")); n != 200 {
		t.Errorf("head snippet length = %d runes, want 200", n)
	}
}

func TestHighlight_WrapsExactAndTitleCase(t *testing.T) {
	got := Highlight("The lease and the Lease", "lease")
	want := "The <mark>lease</mark> and the <mark>Lease</mark>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHighlight_EmptyQueryUnchanged(t *testing.T) {
	if got := Highlight("content", "  "); got != "content" {
		t.Fatalf("got %q", got)
	}
}

func TestHighlight_ShortTermsIgnored(t *testing.T) {
	if got := Highlight("a an it", "a an it"); got != "a an it" {
		t.Fatalf("got %q", got)
	}
}
