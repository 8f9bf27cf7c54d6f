package rag

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Cache keys are md5 content hashes. md5 is used for speed and key length,
// not security; a collision returns another entry's value, which is an
// accepted trade-off for cache lookups.

// textKey derives the embedding-cache key for a text.
func textKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// vectorKeyPrefixLen bounds how many leading vector components feed the
// search-cache key. Near-duplicate vectors that agree on this prefix collide
// to the same key and return the cached result; that approximation is the
// point of the scheme, trading exactness for hit rate.
const vectorKeyPrefixLen = 10

// searchKey derives the search-cache key from a bounded vector prefix plus the
// query parameters.
func searchKey(vector []float32, topK int, namespace string) string {
	prefix := vector
	if len(prefix) > vectorKeyPrefixLen {
		prefix = prefix[:vectorKeyPrefixLen]
	}

	var sb strings.Builder
	for i, v := range prefix {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%.6f", v)
	}
	sum := md5.Sum([]byte(sb.String()))

	if namespace == "" {
		namespace = "default"
	}
	return fmt.Sprintf("%s_%d_%s", hex.EncodeToString(sum[:]), topK, namespace)
}

// questionKey derives the response-cache key from the case-normalized
// question text, so trivially restated questions share an entry.
func questionKey(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
