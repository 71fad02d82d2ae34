package article

import "testing"

func TestFilter(t *testing.T) {
	articles := []Article{
		{ID: "a1", PublicTitle: "Intro to Solfège", PublicDescription: "First steps", Level: LevelBeginner, GroupID: "1", Keywords: []string{"music", "theory"}},
		{ID: "a2", PublicTitle: "Advanced Harmony", PublicDescription: "Chord voicings", Level: LevelAdvanced, GroupID: "1", Keywords: []string{"harmony"}},
		{ID: "a3", PublicTitle: "Rhythm Basics", PublicDescription: "Reading music notation", Level: LevelBeginner, GroupID: "2"},
		{ID: "a4", PublicTitle: "Counterpoint", Level: LevelExpert},
	}

	tests := []struct {
		name   string
		facets Facets
		want   []string
	}{
		{name: "empty facets return all", facets: Facets{}, want: []string{"a1", "a2", "a3", "a4"}},
		{name: "level all is a no-op", facets: Facets{Level: "all"}, want: []string{"a1", "a2", "a3", "a4"}},
		{name: "level", facets: Facets{Level: LevelBeginner}, want: []string{"a1", "a3"}},
		{name: "level is case-insensitive", facets: Facets{Level: "Advanced"}, want: []string{"a2"}},
		{name: "group", facets: Facets{GroupID: "1"}, want: []string{"a1", "a2"}},
		{name: "search matches title", facets: Facets{Search: "harmony"}, want: []string{"a2"}},
		{name: "search matches description", facets: Facets{Search: "notation"}, want: []string{"a3"}},
		{name: "search matches keywords", facets: Facets{Search: "MUSIC"}, want: []string{"a1", "a3"}},
		{name: "facets combine with AND", facets: Facets{Search: "music", Level: LevelBeginner, GroupID: "2"}, want: []string{"a3"}},
		{name: "no match", facets: Facets{Search: "cooking"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facets := tt.facets
			facets.Clean()
			if got := Filter(articles, facets); !equalIDs(ids(got), tt.want) {
				t.Errorf("Filter() = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestFilter_returnsFreshSlice(t *testing.T) {
	articles := []Article{{ID: "a1"}, {ID: "a2"}}
	got := Filter(articles, Facets{})
	got[0].ID = "mutated"
	if articles[0].ID != "a1" {
		t.Error("Filter() must not alias its input")
	}
}

func TestGroupLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1", "2", true},
		{"2", "10", true}, // numeric-aware, not lexical
		{"10", "2", false},
		{"1", UngroupedID, true}, // Ungrouped always last
		{UngroupedID, "99", false},
		{"alpha", "beta", true},
		{"2", "alpha", true}, // numeric before non-numeric
	}
	for _, tt := range tests {
		if got := groupLess(tt.a, tt.b); got != tt.want {
			t.Errorf("groupLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
