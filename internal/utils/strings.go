package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// ParseSymbols parses a comma-separated symbol list such as a ?symbols=
// query value. See NormalizeSymbols.
func ParseSymbols(s string) []string {
	return NormalizeSymbols(ParseCSV(s))
}

// NormalizeSymbols trims and uppercases symbols, dropping blanks and
// duplicates while keeping the first occurrence's position.
func NormalizeSymbols(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, v := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(v))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
