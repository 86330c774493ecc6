// Package layers models imported external layers.  A layer's identity is a
// composite key over its kind, source and display name; two imports with the
// same key are the same logical layer and collections here never hold both.
package layers

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"hikemap/pkg/features"
)

// Kind is the source document format of a layer.
type Kind string

const (
	KindKML Kind = "KML"
	KindGPX Kind = "GPX"
)

// Layer is one imported external layer and its normalized features.
type Layer struct {
	Kind      Kind
	SourceURL string
	Name      string
	AdminID   string // KML admin-edit identifier, empty otherwise
	Opacity   float64
	Visible   bool

	Features  []*features.EditableFeature
	Extent    orb.Bound
	HasExtent bool
}

// ID returns the composite identity key used for deduplication.
func (l *Layer) ID() string {
	id := fmt.Sprintf("%s|%s|%s", l.Kind, l.SourceURL, l.Name)
	if l.AdminID != "" {
		id += "@adminId=" + l.AdminID
	}
	return id
}

// Set is a deduplicating, insertion-ordered layer collection, safe for
// concurrent use.
type Set struct {
	mu    sync.Mutex
	byID  map[string]*Layer
	order []string
}

func NewSet() *Set {
	return &Set{byID: make(map[string]*Layer)}
}

// Add stores the layer under its composite key.  It reports false, leaving
// the existing layer untouched, when the key is already present.
func (s *Set) Add(l *Layer) bool {
	id := l.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; exists {
		return false
	}
	s.byID[id] = l
	s.order = append(s.order, id)
	return true
}

// Get returns the layer stored under id.
func (s *Set) Get(id string) (*Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byID[id]
	return l, ok
}

// Remove deletes the layer stored under id, reporting whether it existed.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the layers in insertion order.
func (s *Set) All() []*Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Layer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
