package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Scorer calculates the consistency index and generates signals.
// The index is informational: it never changes which conflicts are reported.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate builds the consistency score for one analysis run
func (s *Scorer) Calculate(slides []model.Slide, mentions []model.Mention, conflicts []model.Conflict, issues []model.Issue) model.Score {
	var signals []model.Signal

	// 1. Mention coverage (informational)
	signals = append(signals, s.mentionCoverage(slides, mentions))

	// 2. Unparsed mentions (confidence only)
	unparsedRatio, unparsedSignal := s.unparsedMentions(mentions)
	signals = append(signals, unparsedSignal)

	// 3. Local number conflicts (penalty, up to 60 points)
	conflictPenalty := 0
	if len(conflicts) > 0 {
		var signal model.Signal
		conflictPenalty, signal = s.numberConflicts(conflicts)
		signals = append(signals, signal)
	}

	// 4. Model-proposed issues (penalty, up to 20 points)
	issuePenalty := 0
	if len(issues) > 0 {
		var signal model.Signal
		issuePenalty, signal = s.modelIssues(issues)
		signals = append(signals, signal)
	}

	index := 100 - conflictPenalty - issuePenalty
	if index < 0 {
		index = 0
	}

	comparable := 0
	for _, m := range mentions {
		if m.Type == model.MentionNumber && m.Value != nil {
			comparable++
		}
	}

	return model.Score{
		Index:      index,
		Confidence: s.determineConfidence(comparable, unparsedRatio, len(conflicts) > 0),
		Conflict:   len(conflicts) > 0,
		Signals:    signals,
	}
}

// mentionCoverage reports how many slides carry quantitative mentions
func (s *Scorer) mentionCoverage(slides []model.Slide, mentions []model.Mention) model.Signal {
	withMentions := make(map[int]bool)
	for _, m := range mentions {
		withMentions[m.Slide] = true
	}

	counts := model.CountMentions(mentions)
	data := map[string]interface{}{
		"slides":               len(slides),
		"slides_with_mentions": len(withMentions),
		"numbers":              counts[model.MentionNumber],
		"percents":             counts[model.MentionPercent],
		"dates":                counts[model.MentionDate],
	}

	if len(slides) == 0 {
		return model.Signal{
			Type:        model.SignalMentionCoverage,
			Severity:    model.SeverityWarning,
			Description: "No slides to analyze",
			Data:        data,
		}
	}

	ratio := float64(len(withMentions)) / float64(len(slides))
	data["ratio"] = ratio
	data["formula"] = "slides_with_mentions / slides"

	return model.Signal{
		Type:        model.SignalMentionCoverage,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d/%d slides contain numbers, percentages or dates", len(withMentions), len(slides)),
		Data:        data,
	}
}

// unparsedMentions reports mentions whose value could not be normalized
func (s *Scorer) unparsedMentions(mentions []model.Mention) (float64, model.Signal) {
	if len(mentions) == 0 {
		return 0, model.Signal{
			Type:        model.SignalUnparsedMentions,
			Severity:    model.SeverityInfo,
			Description: "No mentions extracted",
			Data:        map[string]interface{}{"mentions": 0},
		}
	}

	unparsed := 0
	for _, m := range mentions {
		if !m.HasValue() {
			unparsed++
		}
	}

	ratio := float64(unparsed) / float64(len(mentions))
	severity := model.SeverityInfo
	if ratio > 0.5 {
		severity = model.SeverityCritical
	} else if ratio > 0.2 {
		severity = model.SeverityWarning
	}

	return ratio, model.Signal{
		Type:        model.SignalUnparsedMentions,
		Severity:    severity,
		Description: fmt.Sprintf("Unparsed mentions: %d/%d (%.0f%%)", unparsed, len(mentions), ratio*100),
		Data: map[string]interface{}{
			"unparsed": unparsed,
			"mentions": len(mentions),
			"ratio":    ratio,
			"formula":  "unparsed / mentions",
		},
	}
}

// numberConflicts converts local conflicts into a penalty (15 points each, max 60)
func (s *Scorer) numberConflicts(conflicts []model.Conflict) (int, model.Signal) {
	penalty := int(math.Min(float64(len(conflicts)*15), 60))

	slides := make(map[int]bool)
	maxRel := 0.0
	for _, c := range conflicts {
		slides[c.Slides[0]] = true
		slides[c.Slides[1]] = true
		maxRel = math.Max(maxRel, c.RelativeDifference)
	}

	severity := model.SeverityWarning
	if len(conflicts) >= 3 {
		severity = model.SeverityCritical
	}

	return penalty, model.Signal{
		Type:        model.SignalNumberConflict,
		Severity:    severity,
		Description: fmt.Sprintf("%d conflicting number pair(s) across %d slides", len(conflicts), len(slides)),
		Data: map[string]interface{}{
			"conflicts":               len(conflicts),
			"slides":                  len(slides),
			"max_relative_difference": maxRel,
			"penalty":                 penalty,
			"formula":                 "min(conflicts * 15, 60)",
		},
	}
}

// modelIssues converts language-model issues into a smaller penalty (5 points each, max 20)
func (s *Scorer) modelIssues(issues []model.Issue) (int, model.Signal) {
	penalty := int(math.Min(float64(len(issues)*5), 20))

	byType := make(map[string]int)
	for _, issue := range issues {
		byType[issue.Type]++
	}

	return penalty, model.Signal{
		Type:        model.SignalModelIssues,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Language model proposed %d issue(s)", len(issues)),
		Data: map[string]interface{}{
			"issues":  len(issues),
			"by_type": byType,
			"penalty": penalty,
			"formula": "min(issues * 5, 20)",
		},
	}
}

// determineConfidence rates how much the index can be trusted
func (s *Scorer) determineConfidence(comparable int, unparsedRatio float64, conflict bool) string {
	if conflict {
		return "low-medium"
	}

	// Fewer than two valued numbers means nothing was compared
	if comparable < 2 {
		return "low"
	}

	if unparsedRatio > 0.2 {
		return "medium"
	}
	return "high"
}
