package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Policy decides which procedures may be served from the cache. Only
// procedures whose result never changes for the same params belong here,
// e.g. getblock by hash or getrawtransaction.
type Policy struct {
	methods map[string]bool
}

// NewPolicy creates a policy from procedure names. Names are matched
// case-insensitively.
func NewPolicy(methods []string) *Policy {
	p := &Policy{methods: make(map[string]bool, len(methods))}
	for _, m := range methods {
		p.methods[strings.ToLower(m)] = true
	}
	return p
}

// IsCacheable reports whether results of method may be cached
func (p *Policy) IsCacheable(method string) bool {
	if p == nil {
		return false
	}
	return p.methods[strings.ToLower(method)]
}

// GenerateCacheKey creates a unique cache key for a call. params must be
// JSON-serializable; ok is false when they are not.
func GenerateCacheKey(method string, params []any) (key string, ok bool) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", false
	}
	hash := sha256.Sum256(data)
	paramsHash := hex.EncodeToString(hash[:16])

	return strings.ToLower(method) + ":" + paramsHash, true
}
