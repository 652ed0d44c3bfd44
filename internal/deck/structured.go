package deck

import (
	"encoding/json"
	"errors"

	"github.com/ppiankov/deckcheck/internal/model"
	"gopkg.in/yaml.v3"
)

// slideList accepts either a bare list of slides or {"slides": [...]}
type slideList struct {
	Slides []model.Slide `json:"slides" yaml:"slides"`
}

func parseJSON(data []byte) ([]model.Slide, error) {
	var slides []model.Slide
	if err := json.Unmarshal(data, &slides); err != nil {
		var wrapped slideList
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, err
		}
		slides = wrapped.Slides
	}
	return fillIndexes(slides)
}

func parseYAML(data []byte) ([]model.Slide, error) {
	var slides []model.Slide
	if err := yaml.Unmarshal(data, &slides); err != nil {
		var wrapped slideList
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, err
		}
		slides = wrapped.Slides
	}
	return fillIndexes(slides)
}

// fillIndexes gives unnumbered slides their 1-based position
func fillIndexes(slides []model.Slide) ([]model.Slide, error) {
	if len(slides) == 0 {
		return nil, errors.New("no slides found")
	}
	for i := range slides {
		if slides[i].Index == 0 {
			slides[i].Index = i + 1
		}
	}
	return slides, nil
}
