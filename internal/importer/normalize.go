package importer

import (
	"strings"
	"unicode"
)

var truthy = map[string]struct{}{
	"yes":  {},
	"true": {},
	"1":    {},
	"y":    {},
}

// NormalizeHeader maps a column label to its field key: trimmed, lowercased,
// with each internal space replaced by an underscore.
func NormalizeHeader(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// NormalizeText trims and title-cases a categorical or descriptive cell.
// Blank cells become "".
func NormalizeText(cell string) string {
	return TitleCase(strings.TrimSpace(cell))
}

// NormalizeMulti title-cases each comma separated token, drops empty tokens
// and rejoins the rest with ", ". Order is preserved and duplicates are kept.
func NormalizeMulti(cell string) string {
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, TitleCase(p))
	}
	return strings.Join(out, ", ")
}

// ToBool is true only for yes, true, 1 or y after trimming, in any case.
func ToBool(cell string) bool {
	_, ok := truthy[strings.ToLower(strings.TrimSpace(cell))]
	return ok
}

// NormalizeID trims the identifier cell. A missing cell yields "".
func NormalizeID(cell string) string {
	return strings.TrimSpace(cell)
}

// TitleCase upper-cases every cased letter that follows an uncased rune and
// lower-cases every other cased letter, so "o'neil 2nd" becomes "O'Neil 2Nd".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		if isCased(r) {
			if prevCased {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevCased = true
			continue
		}
		b.WriteRune(r)
		prevCased = false
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}
