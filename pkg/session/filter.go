package session

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"k8s.io/klog/v2"
	"visagateway/pkg/transport"
)

// Filter narrows List results. All fields are optional and combined with AND;
// string fields match case-insensitive substrings.
type Filter struct {
	Kind     string `json:"kind"`
	Dialect  string `json:"dialect"`
	Label    string `json:"label"`
	Identity string `json:"identity"`
}

// ParseFilter decodes a raw query-parameter map into a Filter.
func ParseFilter(raw map[string]interface{}) *Filter {
	if len(raw) == 0 {
		return nil
	}
	f := &Filter{}
	if err := mapstructure.Decode(raw, f); err != nil {
		klog.V(2).InfoS("Failed to decode session filter", "err", err)
		return nil
	}
	return f
}

func (f *Filter) Match(s *Session) bool {
	if f == nil {
		return true
	}
	if f.Kind != "" && !strings.EqualFold(f.Kind, transport.KindToString[s.Kind()]) {
		return false
	}
	if f.Dialect != "" {
		if s.Dialect() == nil || !containsFold(s.Dialect().Name(), f.Dialect) {
			return false
		}
	}
	if f.Label != "" && !containsFold(s.Label(), f.Label) {
		return false
	}
	if f.Identity != "" && !containsFold(s.Identity(), f.Identity) {
		return false
	}
	return true
}

// ListFiltered snapshots matching sessions in stable resource order.
func (r *Registry) ListFiltered(f *Filter) []*Session {
	all := r.List()
	if f == nil {
		return all
	}
	out := make([]*Session, 0, len(all))
	for _, s := range all {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
