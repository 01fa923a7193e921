package extraction

import (
	"regexp"
	"strings"
)

// taxIdWeights are the fixed mod-11 checksum weights for positions 0-9 of an
// 11-digit tax identifier (CUIT).
var taxIdWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// NormalizeTaxId strips the separators allowed in printed tax-ids.
func NormalizeTaxId(s string) string {
	r := strings.NewReplacer("-", "", ".", "", " ", "")
	return r.Replace(strings.TrimSpace(s))
}

// ValidTaxId reports whether s is a checksum-valid 11-digit tax identifier
// after separator stripping. Pure function, no side effects.
func ValidTaxId(s string) bool {
	digits := NormalizeTaxId(s)
	if len(digits) != 11 {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * taxIdWeights[i]
	}
	last := digits[10]
	if last < '0' || last > '9' {
		return false
	}

	check := 11 - (sum % 11)
	switch check {
	case 11:
		check = 0
	case 10:
		check = 9
	}
	return int(last-'0') == check
}

// taxIdTokenPattern matches the printed form: 2 digits, separator, 8 digits,
// separator, 1 digit, optionally preceded by a CUIT label. Word boundaries on
// both sides so a longer digit run cannot yield a tax-id sliced from its tail.
var taxIdTokenPattern = regexp.MustCompile(`(?i)(?:C\.?U\.?I\.?T\.?\s*:?\s*)?\b(\d{2}[-. ]\d{8}[-. ]\d)\b`)

// bareTaxIdPattern matches an unseparated 11-digit run (receipt text fields).
var bareTaxIdPattern = regexp.MustCompile(`\b(\d{11})\b`)

// findTaxIdInLine returns the first checksum-valid tax-id token in a line,
// normalized to digits, or "" when none.
func findTaxIdInLine(line string) string {
	for _, m := range taxIdTokenPattern.FindAllStringSubmatch(line, -1) {
		if ValidTaxId(m[1]) {
			return NormalizeTaxId(m[1])
		}
	}
	return ""
}

// FindTaxIds extracts every checksum-valid tax-id from free text, in order of
// appearance, deduplicated. Both separated and bare 11-digit forms count.
func FindTaxIds(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(raw string) {
		if !ValidTaxId(raw) {
			return
		}
		id := NormalizeTaxId(raw)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, m := range taxIdTokenPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareTaxIdPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return ids
}
