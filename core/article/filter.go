package article

import (
	"strings"

	"github.com/trezcool/maktaba/core"
)

// Facets narrows an already-resolved article list. Zero values mean "all".
type Facets struct {
	Search  string `query:"search"`
	Level   string `query:"level"`
	GroupID string `query:"group"`
}

func (f *Facets) IsEmpty() bool {
	return f.Search == "" && f.Level == "" && f.GroupID == ""
}

func (f *Facets) Clean() {
	f.Search = core.CleanString(f.Search)
	f.Level = core.CleanString(f.Level, true /* lower */)
	f.GroupID = core.CleanString(f.GroupID)
	if f.Level == "all" {
		f.Level = ""
	}
	if f.GroupID == "all" {
		f.GroupID = ""
	}
}

// Filter applies the facets as a logical AND over the list. The input slice is
// never mutated; the result is a fresh slice recomputed per call.
func Filter(articles []Article, facets Facets) []Article {
	if facets.IsEmpty() {
		out := make([]Article, len(articles))
		copy(out, articles)
		return out
	}

	term := strings.ToLower(facets.Search)
	out := make([]Article, 0, len(articles))
	for _, art := range articles {
		if term != "" && !matchesTerm(art, term) {
			continue
		}
		if facets.Level != "" && art.Level != facets.Level {
			continue
		}
		if facets.GroupID != "" && art.GroupID != facets.GroupID {
			continue
		}
		out = append(out, art)
	}
	return out
}

// matchesTerm does a case-insensitive substring match on the public fields
// and keywords; internal titles and descriptions are not searched.
func matchesTerm(art Article, term string) bool {
	if strings.Contains(strings.ToLower(art.PublicTitle), term) {
		return true
	}
	if strings.Contains(strings.ToLower(art.PublicDescription), term) {
		return true
	}
	for _, kw := range art.Keywords {
		if strings.Contains(strings.ToLower(kw), term) {
			return true
		}
	}
	return false
}
