package network

import (
	"sort"
	"strings"
)

// Params is a decoded KEY:VALUE;KEY:VALUE string. Keys are upper-cased.
type Params map[string]string

// ParseParams decodes s. Empty segments are skipped; a segment without ':' or with an
// empty key makes the whole string invalid.
func ParseParams(s string) (Params, bool) {
	p := Params{}
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, value, ok := strings.Cut(seg, ":")
		key = strings.ToUpper(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, false
		}
		p[key] = strings.TrimSpace(value)
	}
	return p, true
}

// Encode renders the params with keys in sorted order so output is stable.
func (p Params) Encode() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+p[k])
	}
	return strings.Join(parts, ";")
}

// Missing returns the required keys not present in p.
func (p Params) Missing(required ...string) []string {
	var out []string
	for _, k := range required {
		if _, ok := p[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
