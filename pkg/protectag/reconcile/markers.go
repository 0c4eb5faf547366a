// Package reconcile owns the marker tag families on a product and rewrites
// them with a remove-then-add pair of mutations.
package reconcile

import (
	"strconv"
	"strings"
)

// DefaultPrefix names the marker families: protection_on, protection_off
// and protection_cat<N>.
const DefaultPrefix = "protection"

// Markers builds and recognises marker tags for one prefix.
type Markers struct {
	Prefix string
}

func (m Markers) prefix() string {
	if m.Prefix == "" {
		return DefaultPrefix
	}
	return m.Prefix
}

// On is the enabled marker.
func (m Markers) On() string { return m.prefix() + "_on" }

// Off is the disabled marker.
func (m Markers) Off() string { return m.prefix() + "_off" }

// Cat is the category marker for id.
func (m Markers) Cat(id int64) string {
	return m.prefix() + "_cat" + strconv.FormatInt(id, 10)
}

// IsMarker reports whether tag belongs to one of the three families. A
// category marker needs at least one ASCII digit and nothing else after _cat.
func (m Markers) IsMarker(tag string) bool {
	if tag == m.On() || tag == m.Off() {
		return true
	}
	rest, ok := strings.CutPrefix(tag, m.prefix()+"_cat")
	if !ok || rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}

// CategoryOf returns the id carried by a category marker.
func (m Markers) CategoryOf(tag string) (int64, bool) {
	if !m.IsMarker(tag) || tag == m.On() || tag == m.Off() {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(tag, m.prefix()+"_cat"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
