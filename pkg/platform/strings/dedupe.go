// Package strings parses list-valued settings such as broker addresses.
package strings

import (
	"strings"
)

// Unique trims each value and keeps the first occurrence of every non-blank
// one, in input order.
func Unique(values []string) []string {
	var out []string
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

// SplitList splits a comma-separated setting. A blank setting yields nil.
//
//	SplitList("kafka-1:9092, kafka-2:9092,,kafka-1:9092")
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(raw string) []string {
	return Unique(strings.Split(raw, ","))
}
