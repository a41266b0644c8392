package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sep is one optional group separator: hyphen, dot or any Unicode space.
// Printed cards often set numbers with NBSP or narrow no-break spaces.
const sep = `[-.\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]?`

// phonePattern matches an optional +country code, an optional (area) code and
// three digit groups. It is loose on purpose and also hits plain numeric text.
var phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}` + sep + `)?(?:\(\d{1,4}\)` + sep + `)?\d{1,4}` + sep + `\d{1,4}` + sep + `\d{1,9}`)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Candidate is a tentative name/phone pairing found in recognized text
type Candidate struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"` // digits only
	Color   string `json:"color"`
	Initial string `json:"initial"`
}

// Block is one text block reported by an OCR engine
type Block struct {
	Text string `json:"text"`
}

// Extractor turns recognized text into contact candidates
type Extractor struct {
	colors ColorSource
}

// NewExtractor creates an Extractor. A nil source falls back to RandomPalette.
func NewExtractor(colors ColorSource) *Extractor {
	if colors == nil {
		colors = RandomPalette{}
	}
	return &Extractor{colors: colors}
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default Extractor over raw text
func Extract(raw string) []Candidate {
	return defaultExtractor.Extract(raw)
}

// ExtractSingle runs the default Extractor in single-candidate mode
func ExtractSingle(blocks []Block) (Candidate, bool) {
	return defaultExtractor.ExtractSingle(blocks)
}

// Extract pairs every line holding a phone number with the line right above
// it, as long as that line is not a phone number itself. Only one line of
// lookback is used. When no line pairs up but the raw text still matches
// somewhere (a number broken across lines, say) every raw match becomes a
// nameless candidate.
func (e *Extractor) Extract(raw string) []Candidate {
	candidates := make([]Candidate, 0)
	if raw == "" {
		return candidates
	}

	lines := splitLines(raw)
	for i, line := range lines {
		match := phonePattern.FindString(line)
		if match == "" {
			continue
		}
		name := ""
		if i > 0 && !phonePattern.MatchString(lines[i-1]) {
			name = lines[i-1]
		}
		candidates = append(candidates, e.newCandidate(name, match))
	}

	if len(candidates) > 0 {
		return candidates
	}
	for _, match := range phonePattern.FindAllString(raw, -1) {
		candidates = append(candidates, e.newCandidate("", match))
	}
	return candidates
}

// ExtractSingle treats the first block as the name, whatever it says, and the
// first phone match anywhere in the blocks as the number. ok is false when
// there are no blocks or no number.
func (e *Extractor) ExtractSingle(blocks []Block) (Candidate, bool) {
	if len(blocks) == 0 {
		return Candidate{}, false
	}
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	match := phonePattern.FindString(strings.Join(texts, " "))
	if match == "" {
		return Candidate{}, false
	}
	return e.newCandidate(blocks[0].Text, match), true
}

func (e *Extractor) newCandidate(name, match string) Candidate {
	name = strings.TrimSpace(name)
	return Candidate{
		Name:    name,
		Phone:   Digits(match),
		Color:   e.colors.Color(),
		Initial: Initial(name),
	}
}

// splitLines splits on any line break and drops blank lines
func splitLines(raw string) []string {
	parts := strings.Split(lineBreaks.Replace(raw), "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// Digits strips everything but ASCII digits
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Initial returns the uppercased first letter of name, or "?"
func Initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// Filter keeps candidates whose name contains query (case-insensitive) or
// whose phone contains it
func Filter(candidates []Candidate, query string) []Candidate {
	if query == "" {
		return candidates
	}
	q := strings.ToLower(query)
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(c.Phone, query) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
