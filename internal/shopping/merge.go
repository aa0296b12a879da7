package shopping

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NameKey is the identity of an item within a list: trimmed, NFC-normalized
// and case-folded, so "Milk", " milk" and "MILK" are the same item.
func NameKey(name string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(name)))
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// parseLeadingFloat reads the number a quantity starts with, so "2 lbs"
// reads as 2. It reports false when the text does not start with a number.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// MergeQuantityNumeric sums two quantities as bare numbers when an item is
// added to a list that already has it. An empty quantity counts as 1. Units
// are dropped; when either side is not numeric the result resets to "1".
//
// Generated grocery lists use content.AggregateGrocery instead, which keeps
// both quantities as text.
func MergeQuantityNumeric(prev, add string) string {
	if strings.TrimSpace(prev) == "" {
		prev = "1"
	}
	if strings.TrimSpace(add) == "" {
		add = "1"
	}
	a, okA := parseLeadingFloat(prev)
	b, okB := parseLeadingFloat(add)
	if !okA || !okB {
		return "1"
	}
	return strconv.FormatFloat(a+b, 'f', -1, 64)
}
