package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reScript = regexp.MustCompile(`(?i)<script[^>]*>[\s\S]*?</script>`)
	reStyle  = regexp.MustCompile(`(?i)<style[^>]*>[\s\S]*?</style>`)

	stripPolicy = bluemonday.StripTagsPolicy()

	// accentFolder strips combining marks so "José" matches "jose".
	accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SanitizeHTML strips HTML tags, script/style content, and decodes entities,
// producing plain text suitable for classification prompts and snippets.
func SanitizeHTML(s string) string {
	// Decode entities first (e.g. &lt; -> <) so tags are recognized
	s = html.UnescapeString(s)

	s = reScript.ReplaceAllString(s, "")
	s = reStyle.ReplaceAllString(s, "")

	s = stripPolicy.Sanitize(s)

	// bluemonday may re-escape entities; decode again for plain text
	s = html.UnescapeString(s)

	return strings.Join(strings.Fields(s), " ")
}

// ToValidUTF8 cleans strings to ensure they are valid UTF-8
func ToValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// FoldAccents removes diacritical marks and lowercases for matching.
func FoldAccents(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// TruncateUTF8 truncates text to at most maxSize bytes without splitting a
// multi-byte rune. maxSize <= 0 means no limit.
func TruncateUTF8(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + "\n[... content truncated ...]"
}

// HasReplyPrefix reports whether a subject already starts with "Re:",
// matching case-insensitively.
func HasReplyPrefix(subject string) bool {
	return len(subject) >= 3 && strings.EqualFold(subject[:3], "re:")
}

// SnippetOf derives a short preview from plain text, at most n runes.
func SnippetOf(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
