package extract

import (
	"strings"
	"testing"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mentionsOfType(mentions []model.Mention, typ model.MentionType) []model.Mention {
	var out []model.Mention
	for _, m := range mentions {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestExtractor_RevenueSlides(t *testing.T) {
	slides := []model.Slide{
		{Index: 1, Text: "Revenue was $2 million in Q1"},
		{Index: 2, Text: "Our Q1 revenue reached $5 million"},
	}

	numbers := mentionsOfType(NewExtractor(DefaultContextRadius).Extract(slides), model.MentionNumber)
	require.Len(t, numbers, 2)

	assert.Equal(t, 1, numbers[0].Slide)
	assert.Equal(t, "$2 million", numbers[0].Raw)
	require.NotNil(t, numbers[0].Value)
	assert.Equal(t, 2e6, *numbers[0].Value)
	assert.Equal(t, slides[0].Text, numbers[0].Context)

	assert.Equal(t, 2, numbers[1].Slide)
	assert.Equal(t, "$5 million", numbers[1].Raw)
	require.NotNil(t, numbers[1].Value)
	assert.Equal(t, 5e6, *numbers[1].Value)
}

func TestExtractor_PassOrderWithinSlide(t *testing.T) {
	slides := []model.Slide{{Index: 3, Text: "Launch on 03/31/2014, churn 4.5% across 1,200 accounts"}}

	mentions := NewExtractor(DefaultContextRadius).Extract(slides)
	require.NotEmpty(t, mentions)

	// numbers first, then percents, then dates
	lastRank := 0
	rank := map[model.MentionType]int{model.MentionNumber: 1, model.MentionPercent: 2, model.MentionDate: 3}
	for _, m := range mentions {
		assert.GreaterOrEqual(t, rank[m.Type], lastRank, "mention %q out of pass order", m.Raw)
		lastRank = rank[m.Type]
		assert.Equal(t, 3, m.Slide)
	}

	percents := mentionsOfType(mentions, model.MentionPercent)
	require.Len(t, percents, 1)
	assert.Equal(t, "4.5%", percents[0].Raw)
	require.NotNil(t, percents[0].Value)
	assert.InDelta(t, 0.045, *percents[0].Value, 1e-12)

	dates := mentionsOfType(mentions, model.MentionDate)
	require.NotEmpty(t, dates)
	assert.Equal(t, "03/31/2014", dates[0].Raw)
	require.NotNil(t, dates[0].Date)
	assert.Equal(t, "2014-03-31T00:00:00", *dates[0].Date)
}

func TestExtractor_OverlappingMatchesAreKept(t *testing.T) {
	slides := []model.Slide{{Index: 1, Text: "Margin hit 15%"}}

	mentions := NewExtractor(DefaultContextRadius).Extract(slides)
	numbers := mentionsOfType(mentions, model.MentionNumber)
	percents := mentionsOfType(mentions, model.MentionPercent)

	require.Len(t, numbers, 1)
	require.Len(t, percents, 1)
	assert.Equal(t, "15", numbers[0].Raw)
	assert.Equal(t, "15%", percents[0].Raw)
}

func TestExtractor_WordBoundaries(t *testing.T) {
	slides := []model.Slide{{Index: 1, Text: "FY24 plan: hire for 5 months, ship v2 in Q3"}}

	numbers := mentionsOfType(NewExtractor(DefaultContextRadius).Extract(slides), model.MentionNumber)
	require.Len(t, numbers, 1)
	assert.Equal(t, "5", numbers[0].Raw)
	require.NotNil(t, numbers[0].Value)
	assert.Equal(t, 5.0, *numbers[0].Value)
}

func TestExtractor_UnparseableDateIsRetained(t *testing.T) {
	slides := []model.Slide{{Index: 1, Text: "Mar zz 99"}}

	dates := mentionsOfType(NewExtractor(DefaultContextRadius).Extract(slides), model.MentionDate)
	require.Len(t, dates, 1)
	assert.Equal(t, "Mar zz 99", dates[0].Raw)
	assert.Equal(t, dates[0].Date != nil, dates[0].HasValue())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: "03/31/2014", want: "2014-03-31T00:00:00", wantOK: true},
		{raw: "1 July 2013", want: "2013-07-01T00:00:00", wantOK: true},
		{raw: "not a date", wantOK: false},
		{raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_ContextWindow(t *testing.T) {
	prefix := strings.Repeat("a", 80)
	suffix := strings.Repeat("b", 80)
	text := prefix + "\nTotal 42\n" + suffix

	numbers := mentionsOfType(NewExtractor(DefaultContextRadius).Extract([]model.Slide{{Index: 1, Text: text}}), model.MentionNumber)
	require.Len(t, numbers, 1)

	ctx := numbers[0].Context
	assert.NotContains(t, ctx, "\n")
	assert.Equal(t, strings.Repeat("a", 43)+" Total 42 "+strings.Repeat("b", 49), ctx)
}

func TestExtractor_ContextWindowIsRuneAware(t *testing.T) {
	text := strings.Repeat("é", 60) + " 7"

	numbers := mentionsOfType(NewExtractor(5).Extract([]model.Slide{{Index: 1, Text: text}}), model.MentionNumber)
	require.Len(t, numbers, 1)
	assert.Equal(t, "éééé 7", numbers[0].Context)
}

func TestExtractor_ZeroRadiusKeepsOnlyTheMatch(t *testing.T) {
	text := "Churn fell to 12% after launch"

	percents := mentionsOfType(NewExtractor(0).Extract([]model.Slide{{Index: 1, Text: text}}), model.MentionPercent)
	require.Len(t, percents, 1)
	assert.Equal(t, "12%", percents[0].Context)

	fallback := mentionsOfType(NewExtractor(-1).Extract([]model.Slide{{Index: 1, Text: text}}), model.MentionPercent)
	require.Len(t, fallback, 1)
	assert.Equal(t, text, fallback[0].Context)
}

func TestExtractor_ContextsStayOnTheirSlide(t *testing.T) {
	slides := []model.Slide{
		{Index: 1, Text: "alpha 10"},
		{Index: 2, Text: "20 beta"},
	}

	numbers := mentionsOfType(NewExtractor(DefaultContextRadius).Extract(slides), model.MentionNumber)
	require.Len(t, numbers, 2)
	assert.Equal(t, "alpha 10", numbers[0].Context)
	assert.Equal(t, "20 beta", numbers[1].Context)
}

func TestExtractor_EmptySlide(t *testing.T) {
	slides := []model.Slide{{Index: 1}, {Index: 2, Text: "Users: 300"}}

	mentions := NewExtractor(DefaultContextRadius).Extract(slides)
	for _, m := range mentions {
		assert.Equal(t, 2, m.Slide)
	}
}
