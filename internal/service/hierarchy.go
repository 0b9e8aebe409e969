package service

import (
	"context"
	"sort"

	"github.com/godilite/nps-insights/internal/repository/models"
	"github.com/godilite/nps-insights/internal/taxonomy"
)

// ThemeHierarchy groups the filtered theme aggregates into the two-level
// main-category view. When excludeOther is set the catch-all category is
// removed after construction, leaving the remaining order and shares intact.
func (s *AnalyticsService) ThemeHierarchy(ctx context.Context, f models.ResponseFilter, excludeOther bool) ([]HierarchyNode, error) {
	stats, total, err := s.accumulate(ctx, f)
	if err != nil {
		return nil, err
	}

	themes := make([]ThemeAggregate, 0, len(stats))
	for theme, st := range stats {
		agg := ThemeAggregate{
			Theme:          theme,
			CountResponses: st.count,
			AvgNps:         float64(st.npsSum) / float64(st.count),
		}
		if total > 0 {
			agg.SharePct = 100 * float64(st.count) / float64(total)
		}
		if st.sentimentCount > 0 {
			mean := st.sentimentSum / float64(st.sentimentCount)
			agg.AvgSentiment = &mean
		}
		themes = append(themes, agg)
	}

	nodes := buildHierarchy(themes, total, s.tables.Current())

	if excludeOther {
		other := s.tables.Current().OtherCategory
		filtered := nodes[:0]
		for _, n := range nodes {
			if n.Category != other {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	return nodes, nil
}

// buildHierarchy assembles category nodes from flat theme aggregates.
// Category count is the sum of child counts; averages are count-weighted
// means of child values. Zero-count categories are omitted rather than
// emitted with NaN averages.
func buildHierarchy(themes []ThemeAggregate, total int, tab *taxonomy.Table) []HierarchyNode {
	grouped := make(map[string][]ThemeAggregate)
	for _, t := range themes {
		if t.CountResponses == 0 {
			continue
		}
		cat := tab.CategoryFor(t.Theme)
		grouped[cat] = append(grouped[cat], t)
	}

	nodes := make([]HierarchyNode, 0, len(grouped))
	for cat, children := range grouped {
		sort.Slice(children, func(i, j int) bool {
			if children[i].CountResponses != children[j].CountResponses {
				return children[i].CountResponses > children[j].CountResponses
			}
			return children[i].Theme < children[j].Theme
		})

		node := HierarchyNode{Category: cat, Themes: children}

		var npsWeighted, sentWeighted float64
		var sentWeight int
		for _, c := range children {
			node.Count += c.CountResponses
			npsWeighted += c.AvgNps * float64(c.CountResponses)
			if c.AvgSentiment != nil {
				sentWeighted += *c.AvgSentiment * float64(c.CountResponses)
				sentWeight += c.CountResponses
			}
		}
		node.AvgNps = npsWeighted / float64(node.Count)
		if sentWeight > 0 {
			mean := sentWeighted / float64(sentWeight)
			node.AvgSentiment = &mean
		}
		if total > 0 {
			node.SharePct = 100 * float64(node.Count) / float64(total)
		}
		nodes = append(nodes, node)
	}

	// The catch-all sorts last regardless of size so it never dominates a
	// ranked view.
	sort.Slice(nodes, func(i, j int) bool {
		iOther := nodes[i].Category == tab.OtherCategory
		jOther := nodes[j].Category == tab.OtherCategory
		if iOther != jOther {
			return jOther
		}
		if nodes[i].Count != nodes[j].Count {
			return nodes[i].Count > nodes[j].Count
		}
		return nodes[i].Category < nodes[j].Category
	})
	return nodes
}
