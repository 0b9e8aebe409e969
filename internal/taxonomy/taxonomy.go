// Package taxonomy holds the versioned reference data for theme classification:
// the closed label set, the theme-to-category assignment used by the hierarchy
// view, and the synonym table that folds legacy or drifted labels back onto the
// current taxonomy.
package taxonomy

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Table is an immutable snapshot of the reference data. All lookups are
// case-insensitive; a Table must never be mutated after construction.
type Table struct {
	Version       string
	Labels        []string
	Fallback      string
	OtherCategory string

	notApplicable map[string]struct{}
	labels        map[string]struct{}
	categories    map[string]string
	synonyms      map[string]string
}

// New builds a Table and validates its internal consistency: the fallback must
// be part of the label set, every synonym target must be canonical, and every
// canonical label must have a category assignment.
func New(version string, labels []string, fallback string, notApplicable []string,
	categories map[string]string, otherCategory string, synonyms map[string]string) (*Table, error) {

	t := &Table{
		Version:       version,
		Labels:        labels,
		Fallback:      fallback,
		OtherCategory: otherCategory,
		notApplicable: make(map[string]struct{}, len(notApplicable)),
		labels:        make(map[string]struct{}, len(labels)),
		categories:    make(map[string]string, len(categories)),
		synonyms:      make(map[string]string, len(synonyms)),
	}

	for _, l := range labels {
		t.labels[strings.ToLower(l)] = struct{}{}
	}
	if _, ok := t.labels[strings.ToLower(fallback)]; !ok {
		return nil, fmt.Errorf("fallback label %q is not in the taxonomy", fallback)
	}
	for _, m := range notApplicable {
		t.notApplicable[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	for theme, cat := range categories {
		t.categories[strings.ToLower(theme)] = cat
	}
	for _, l := range labels {
		if _, ok := t.categories[strings.ToLower(l)]; !ok {
			return nil, fmt.Errorf("canonical label %q has no category assignment", l)
		}
	}
	for raw, canonical := range synonyms {
		if _, ok := t.labels[strings.ToLower(canonical)]; !ok {
			return nil, fmt.Errorf("synonym %q maps to unknown label %q", raw, canonical)
		}
		t.synonyms[strings.ToLower(raw)] = canonical
	}
	return t, nil
}

// Normalize maps a raw theme string to its canonical label. Unknown strings are
// returned unchanged: dropping them would silently undercount a theme, so the
// caller decides whether to log the miss. The second return value reports
// whether the input was recognized (either canonical or a known synonym).
func (t *Table) Normalize(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := t.synonyms[key]; ok {
		return canonical, true
	}
	if _, ok := t.labels[key]; ok {
		return strings.ToLower(strings.TrimSpace(raw)), true
	}
	return raw, false
}

// IsCanonical reports whether label is part of the current taxonomy.
func (t *Table) IsCanonical(label string) bool {
	_, ok := t.labels[strings.ToLower(label)]
	return ok
}

// CategoryFor returns the main category for a canonical theme. Themes outside
// the taxonomy land in the catch-all category.
func (t *Table) CategoryFor(theme string) string {
	if cat, ok := t.categories[strings.ToLower(theme)]; ok {
		return cat
	}
	return t.OtherCategory
}

// IsNotApplicable reports whether a comment should bypass classification:
// empty, whitespace-only, or one of the configured "not applicable" markers.
func (t *Table) IsNotApplicable(comment string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(comment))
	if trimmed == "" {
		return true
	}
	_, ok := t.notApplicable[trimmed]
	return ok
}

// Store holds the active Table and supports atomic replacement so that a
// reload never exposes a half-updated table to an in-flight query.
type Store struct {
	current atomic.Pointer[Table]
}

func NewStore(t *Table) *Store {
	s := &Store{}
	s.current.Store(t)
	return s
}

// Current returns the active table. Callers must hold on to the returned
// pointer for the duration of a query instead of calling Current repeatedly.
func (s *Store) Current() *Table {
	return s.current.Load()
}

// Swap atomically replaces the active table.
func (s *Store) Swap(t *Table) {
	s.current.Store(t)
}
