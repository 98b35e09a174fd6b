package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceNumberRe = regexp.MustCompile(`\d[\d,.\s]*`)
	markdownPrice = regexp.MustCompile(`(?:C\$|CA\$|CAD\s?\$?|\$)\s?(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:[.,]\d{2})?)`)
)

// ParsePrice reads a CAD price from a display string such as "$12.99",
// "CA$ 1,299.00", "12,99 $" or "$10 - $15" (the first price wins).
func ParsePrice(s string) (float64, bool) {
	raw := priceNumberRe.FindString(s)
	raw = strings.TrimRight(strings.ReplaceAll(raw, " ", ""), ".,")
	if raw == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.299,00
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	case lastComma >= 0:
		if len(raw)-lastComma-1 == 2 && strings.Count(raw, ",") == 1 {
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// findPrice returns the first dollar amount in page text.
func findPrice(markdown string) (float64, bool) {
	m := markdownPrice.FindStringSubmatch(markdown)
	if m == nil {
		return 0, false
	}
	return ParsePrice(m[1])
}
