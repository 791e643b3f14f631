package classify

import (
	"fmt"
	"unicode/utf8"
)

// scanObfuscation looks for characters that make a command read differently
// than it executes: zero-width and bidi characters, raw control bytes, and
// non-Latin letters that imitate Latin ones. A proposed command arriving from
// an external model is untrusted input; anything found here forces the
// mutating treatment.
func scanObfuscation(command string) []string {
	var findings []string

	i := 0
	for i < len(command) {
		r, size := utf8.DecodeRuneInString(command[i:])
		if r == utf8.RuneError && size == 1 {
			findings = append(findings, fmt.Sprintf("invalid UTF-8 byte 0x%02X at offset %d", command[i], i))
			i++
			continue
		}
		if desc := describeSuspectRune(r); desc != "" {
			findings = append(findings, fmt.Sprintf("%s at offset %d", desc, i))
		}
		i += size
	}
	return findings
}

func describeSuspectRune(r rune) string {
	cp := fmt.Sprintf("U+%04X", r)
	switch {
	case isInvisible(r):
		return fmt.Sprintf("invisible character %s", cp)
	case isBidiControl(r):
		return fmt.Sprintf("bidirectional control %s can make displayed text differ from executed text", cp)
	case r >= 0xE0001 && r <= 0xE007F:
		return fmt.Sprintf("tag character %s", cp)
	case isRawControl(r):
		return fmt.Sprintf("control character %s", cp)
	}
	if latin, ok := homoglyphs[r]; ok {
		return fmt.Sprintf("%s looks like Latin '%c' but is not", cp, latin)
	}
	return ""
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200b', // zero width space
		'\u200c', // zero width non-joiner
		'\u200d', // zero width joiner
		'\u200e', // left-to-right mark
		'\u200f', // right-to-left mark
		'\u2060', // word joiner
		'\u180e', // mongolian vowel separator
		'\ufeff': // zero width no-break space (BOM)
		return true
	}
	return false
}

func isBidiControl(r rune) bool {
	// U+202A..U+202E embeddings/overrides, U+2066..U+2069 isolates.
	return (r >= '\u202a' && r <= '\u202e') || (r >= '\u2066' && r <= '\u2069')
}

func isRawControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

// homoglyphs maps Cyrillic and Greek letters to the Latin letters they are
// commonly confused with.
var homoglyphs = map[rune]rune{
	// Cyrillic
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C',
	'е': 'e', 'Е': 'E', 'Н': 'H', 'і': 'i', 'І': 'I',
	'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O', 'р': 'p',
	'Р': 'P', 'Т': 'T', 'х': 'x', 'Х': 'X', 'у': 'y', 'У': 'Y',
	// Greek
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I',
	'Κ': 'K', 'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'ο': 'o',
	'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y', 'Ζ': 'Z',
}
