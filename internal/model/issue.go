package model

// ConflictTypeNumber is the only conflict type the local detector emits
const ConflictTypeNumber = "number_conflict"

// Conflict is a pair of number mentions from different slides that appear to
// describe the same claim but disagree
type Conflict struct {
	Type     string `json:"type"`
	Slides   [2]int `json:"slides"`
	ARaw     string `json:"a_raw"`
	BRaw     string `json:"b_raw"`
	ContextA string `json:"context_a"`
	ContextB string `json:"context_b"`

	// Transparency data; the pair was flagged because both exceeded their thresholds
	Similarity         float64 `json:"similarity"`
	RelativeDifference float64 `json:"relative_difference"`
}

// Issue is an inconsistency proposed by a language model. The local detector
// never reads these; they are only merged into the report.
type Issue struct {
	Type     string   `json:"type" yaml:"type"`
	Slides   []int    `json:"slides" yaml:"slides"`
	Summary  string   `json:"summary" yaml:"summary"`
	Evidence []string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}
