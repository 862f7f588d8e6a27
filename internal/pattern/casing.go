package pattern

import "strings"

// Casing selects how each substituted token value is reshaped before it
// is placed in the rendered path. It never touches the literal text of
// the pattern itself, only the values substituted in for tokens.
type Casing int

const (
	CasingOriginal Casing = iota
	CasingLower
	CasingUpper
	CasingTitle
	CasingPascal
	CasingCamel
	CasingSnake
	CasingKebab
	CasingScreamingSnake
)

// Apply reshapes s according to c. Unicode case folding is used
// throughout, so accented and other non-ASCII letters keep their
// diacritics under every transform.
func (c Casing) Apply(s string) string {
	switch c {
	case CasingLower:
		return strings.ToLower(s)
	case CasingUpper:
		return strings.ToUpper(s)
	case CasingTitle:
		return joinWords(splitWords(s), " ", capitalizeWord, false)
	case CasingPascal:
		return joinWords(splitWords(s), "", capitalizeWord, false)
	case CasingCamel:
		return joinWords(splitWords(s), "", capitalizeWord, true)
	case CasingSnake:
		return joinWords(splitWords(s), "_", strings.ToLower, false)
	case CasingKebab:
		return joinWords(splitWords(s), "-", strings.ToLower, false)
	case CasingScreamingSnake:
		return joinWords(splitWords(s), "_", strings.ToUpper, false)
	default:
		return s
	}
}

// splitWords breaks s on whitespace, underscores and hyphens. It does not
// split camelCase input further, since the source values are single
// metadata fields (a city name, a two-digit month), not already-cased
// identifiers.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	})
}

func capitalizeWord(w string) string {
	r := []rune(w)
	if len(r) == 0 {
		return w
	}
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

func joinWords(words []string, sep string, wordCase func(string) string, lowerFirst bool) string {
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	for i, w := range words {
		if lowerFirst && i == 0 {
			parts[i] = strings.ToLower(w)
			continue
		}
		parts[i] = wordCase(w)
	}
	return strings.Join(parts, sep)
}
