package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"basketball", "baseball", 2},
		{"Chess", "chess", 1},
		{"dārzs", "darzs", 1}, // counted in runes, not bytes
		{"flaw", "lawn", 2},
	}

	for _, tt := range tests {
		t.Run(tt.a+"->"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
		})
	}
}

func TestDistance_IdentityAndSymmetry(t *testing.T) {
	words := []string{"", "a", "yoga", "Basketball", "Hiking & trekking", "šahs", "board games"}

	for _, a := range words {
		assert.Equal(t, 0, Distance(a, a), "distance(%q, %q)", a, a)
		for _, b := range words {
			assert.Equal(t, Distance(a, b), Distance(b, a), "symmetry for %q, %q", a, b)
		}
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("running", "running"))
	assert.Equal(t, 0.0, Similarity("abc", ""))
	assert.InDelta(t, 0.8, Similarity("basketball", "baseball"), 1e-9)
	assert.Equal(t, Similarity("baseball", "basketball"), Similarity("basketball", "baseball"))
}

func TestScore_Tiers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		item  string
		want  float64
	}{
		{"exact ignores case and spaces", " Basketball ", "basketball", 1000},
		{"prefix", "bask", "Basketball", 500},
		{"contains", "ball", "Basketball", 250},
		{"fuzzy", "basketball", "Baseball", 80},
		{"empty query", "   ", "Basketball", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.query, tt.item), 1e-9)
		})
	}
}

type named struct {
	name string
}

func nameOf(n named) string { return n.name }

func TestRank_BasketballExample(t *testing.T) {
	items := []named{{"Basketball"}, {"Baseball"}, {"Chess"}}

	got := Rank("basketball", items, nameOf)

	assert.Equal(t, []named{{"Basketball"}, {"Baseball"}}, got)
}

func TestRank_DropsAtOrBelowThreshold(t *testing.T) {
	for _, s := range RankScored("basketball", []named{{"Chess"}, {"Volleyball"}, {"Swimming"}}, nameOf) {
		assert.Greater(t, s.Score, Threshold)
	}
}

func TestRank_StableForTies(t *testing.T) {
	items := []named{{"Yoga flow"}, {"Yoga basics"}, {"Yoga"}, {"Hot yoga"}}

	got := RankScored("yoga", items, nameOf)

	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Item.name
	}
	// Exact first, then the two prefix matches in input order, then contains.
	assert.Equal(t, []string{"Yoga", "Yoga flow", "Yoga basics", "Hot yoga"}, names)
	assert.Equal(t, 1000.0, got[0].Score)
	assert.Equal(t, 250.0, got[3].Score)
}

func TestRank_EmptyQueryMatchesNothing(t *testing.T) {
	assert.Empty(t, Rank("", []named{{"Basketball"}, {""}}, nameOf))
}

func TestRank_EmptyInput(t *testing.T) {
	got := Rank("chess", []named(nil), nameOf)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
