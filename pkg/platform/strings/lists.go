// Package strings holds small helpers for env lists and location matching.
package strings

import "strings"

// DedupeAndTrim trims every value and drops blanks and repeats, keeping the
// first occurrence of each.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := values[:0:0]
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SplitList parses a comma separated env value such as KAFKA_BROKERS.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(value, ","))
}

// ContainsFold reports whether needle occurs in haystack ignoring case. An
// empty needle matches everything.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
