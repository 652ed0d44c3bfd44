package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity_Identity(t *testing.T) {
	for _, s := range []string{"", "Revenue was $2 million in Q1", "!!!", "₹5 billion"} {
		assert.Equal(t, 1.0, Similarity(s, s), s)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Revenue was $2 million in Q1", "Our Q1 revenue reached $5 million"},
		{"Growth was 10%", "Growth was 10.4%"},
		{"Headcount grew to 120 people", "Our office is in Berlin since 2019"},
		{"", "something"},
		{"ÉCOLE 2024", "école 2023"},
	}

	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestSimilarity_WordOrderInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("revenue grew fast", "fast grew revenue"))
	assert.Equal(t, 1.0, Similarity("Revenue, grew: FAST", "fast grew revenue"))
}

func TestSimilarity_NoSharedContent(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.Equal(t, 0.0, Similarity("---", "abc"))
}

func TestSimilarity_Range(t *testing.T) {
	sim := Similarity("Revenue was $2 million in Q1", "Our Q1 revenue reached $5 million")
	assert.Greater(t, sim, 0.45)
	assert.Less(t, sim, 1.0)

	unrelated := Similarity("Headcount grew to 120 people", "Our office is in Berlin since 2019")
	assert.Less(t, unrelated, 0.45)
	assert.GreaterOrEqual(t, unrelated, 0.0)
}
