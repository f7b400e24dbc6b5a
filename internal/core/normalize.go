package core

// normalize.go rewrites supplier product codes into the exact format the ERP
// registry stores for that (product group, supplier) pair. Formats are
// matched character for character on the ERP side, so each rule below is
// fixed data, not a heuristic.

import "strings"

type codeRule func(code string) string

type ruleKey struct {
	group    string
	supplier string
}

// anySupplier matches every supplier of a group.
const anySupplier = "*"

var codeRules = map[ruleKey]codeRule{
	{"0052", "JF"}:        jfCode,
	{"0004", "JUMIL"}:     jumilCode,
	{"0003", "JACTO"}:     jactoCode,
	{"0007", "TATU"}:      digitsOnly,
	{"0009", anySupplier}: unchangedCode,
	{"OUTROS", "OUTROS"}:  unchangedCode,
}

// alternateRules hold the second spelling tried when the first is not found.
var alternateRules = map[ruleKey]codeRule{
	{"0007", "TATU"}: tatuGroupedCode,
}

// NormalizeCode returns code in the registry format for (group, supplier).
// Pairs match exactly after trimming, so "jf" is not "JF". Unknown pairs get
// the trimmed code back unchanged.
func NormalizeCode(code, group, supplier string) string {
	code = strings.TrimSpace(code)
	if rule := lookupRule(codeRules, group, supplier); rule != nil {
		return rule(code)
	}
	return code
}

// AlternateCode returns the second spelling to try for (group, supplier)
// and whether the pair has one.
func AlternateCode(code, group, supplier string) (string, bool) {
	rule := lookupRule(alternateRules, group, supplier)
	if rule == nil {
		return "", false
	}
	return rule(strings.TrimSpace(code)), true
}

func lookupRule(rules map[ruleKey]codeRule, group, supplier string) codeRule {
	group = strings.TrimSpace(group)
	supplier = strings.TrimSpace(supplier)
	if rule, ok := rules[ruleKey{group, supplier}]; ok {
		return rule
	}
	return rules[ruleKey{group, anySupplier}]
}

func extractDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// withDigits applies format to the digits of code; codes with no digits at
// all are returned as given rather than padded into zeros.
func withDigits(code string, format func(d string) string) string {
	d := extractDigits(code)
	if d == "" {
		return code
	}
	return format(d)
}

func unchangedCode(code string) string { return code }

func digitsOnly(code string) string {
	return withDigits(code, func(d string) string { return d })
}

// jfCode: right-pad to 8 digits, truncate to 8, dot after the 2nd digit.
// "1234" -> "12.340000"
func jfCode(code string) string {
	return withDigits(code, func(d string) string {
		if len(d) < 8 {
			d += strings.Repeat("0", 8-len(d))
		}
		d = d[:8]
		return d[:2] + "." + d[2:]
	})
}

// jumilCode: left-pad to 7 digits, dots after the 2nd and 4th digit.
// "1234" -> "00.01.234"
func jumilCode(code string) string {
	return withDigits(code, func(d string) string {
		d = leftPad(d, 7)
		return d[:2] + "." + d[2:4] + "." + d[4:]
	})
}

// jactoCode: 4 digits -> "12.34", 7 digits -> "1.234.567",
// any other length -> digits only.
func jactoCode(code string) string {
	return withDigits(code, func(d string) string {
		switch len(d) {
		case 4:
			return d[:2] + "." + d[2:]
		case 7:
			return d[:1] + "." + d[1:4] + "." + d[4:]
		default:
			return d
		}
	})
}

// tatuGroupedCode: left-pad to 10 digits, grouped 3-4-3.
// "1234567890" -> "123.4567.890"
func tatuGroupedCode(code string) string {
	return withDigits(code, func(d string) string {
		d = leftPad(d, 10)
		return d[:3] + "." + d[3:7] + "." + d[7:]
	})
}

func leftPad(d string, n int) string {
	if len(d) >= n {
		return d
	}
	return strings.Repeat("0", n-len(d)) + d
}
