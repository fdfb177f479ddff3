package cache

import (
	"fmt"
	"sort"
	"strings"
)

// StructuredKey builds a cache key from the endpoint slug plus sorted
// parameter and modifier pairs, so two requests that differ only in
// modifier order share one entry. The default key is the expanded request
// URI; this is the opt-in alternative.
func StructuredKey(catalog, endpoint string, params, modifiers map[string]string) string {
	return fmt.Sprintf("%s:%s|%s|%s", catalog, endpoint, sortedPairs(params), sortedPairs(modifiers))
}

func sortedPairs(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}
