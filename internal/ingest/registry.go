// Package ingest fetches the configured feed sources concurrently and merges
// their extracted points.
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/config"
	"github.com/sells-group/navaids/internal/feed"
)

// Source names.
const (
	SourceNotice = "notice"
	SourceWeekly = "weekly"
)

// Target is one document URL and the extractor that reads it.
type Target struct {
	URL       string
	Extractor feed.Extractor
}

// Source is a named group of documents fetched together.
type Source struct {
	Name    string
	Targets []Target
}

// Registry maps source names to sources in registration order.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	if _, ok := r.sources[s.Name]; !ok {
		r.order = append(r.order, s.Name)
	}
	r.sources[s.Name] = s
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return Source{}, eris.Errorf("ingest: unknown source %q (have %s)", name, strings.Join(r.AllNames(), ", "))
	}
	return s, nil
}

// Select returns the named sources in registry order, or every source when
// names is empty.
func (r *Registry) Select(names []string) ([]Source, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			return nil, err
		}
		want[name] = true
	}
	var result []Source
	for _, name := range r.order {
		if want[name] {
			result = append(result, r.sources[name])
		}
	}
	return result, nil
}

// All returns every source in registration order.
func (r *Registry) All() []Source {
	result := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.sources[name])
	}
	return result
}

// AllNames returns the registered source names in order.
func (r *Registry) AllNames() []string {
	return append([]string(nil), r.order...)
}

// DefaultRegistry registers the notice feed and one weekly light-list
// document per configured district.
func DefaultRegistry(cfg config.FeedsConfig) *Registry {
	r := NewRegistry()
	r.Register(Source{
		Name:    SourceNotice,
		Targets: []Target{{URL: cfg.NoticeURL, Extractor: feed.NoticeExtractor{}}},
	})

	weekly := Source{Name: SourceWeekly}
	for _, d := range cfg.WeeklyDistricts {
		weekly.Targets = append(weekly.Targets, Target{
			URL:       fmt.Sprintf(cfg.WeeklyURL, d),
			Extractor: feed.WeeklyExtractor{District: strconv.Itoa(d)},
		})
	}
	r.Register(weekly)
	return r
}
