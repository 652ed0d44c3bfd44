package deck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

// ErrUnsupportedFormat is returned for files deckcheck cannot read
var ErrUnsupportedFormat = errors.New("unsupported deck format")

// Format identifies how a deck is encoded
type Format string

const (
	FormatPPTX Format = "pptx"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Deck is a parsed presentation
type Deck struct {
	Source string        // Path or URL the deck came from
	Format Format        // Encoding it was parsed from
	Slides []model.Slide // Slides in presentation order, 1-based
	Images []Image       // Embedded pictures (pptx only)
}

// Image is a picture embedded in a slide
type Image struct {
	Slide int    // Owning slide index
	Name  string // slide_<n>_img_<k>.<ext>
	Data  []byte
}

// Subject returns a human-readable name for the deck
func (d *Deck) Subject() string {
	base := d.Source
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return base
}

// Slide returns a pointer to the slide with the given index, or nil
func (d *Deck) Slide(index int) *model.Slide {
	for i := range d.Slides {
		if d.Slides[i].Index == index {
			return &d.Slides[i]
		}
	}
	return nil
}

// FormatOf maps a file name to its deck format by extension
func FormatOf(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pptx":
		return FormatPPTX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Supported reports whether a file name has a readable deck extension
func Supported(name string) bool {
	_, err := FormatOf(name)
	return err == nil
}

// Load reads and parses a deck from disk
func Load(path string) (*Deck, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}

	return Parse(path, data)
}

// Parse decodes deck bytes. The name selects the format by extension.
func Parse(name string, data []byte) (*Deck, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}

	d := &Deck{Source: name, Format: format}

	switch format {
	case FormatPPTX:
		d.Slides, d.Images, err = parsePPTX(data)
	case FormatHTML:
		d.Slides, err = parseHTML(data)
	case FormatJSON:
		d.Slides, err = parseJSON(data)
	case FormatYAML:
		d.Slides, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s deck: %w", format, err)
	}

	return d, nil
}
