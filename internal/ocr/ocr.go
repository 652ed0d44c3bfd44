package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ppiankov/deckcheck/internal/deck"
	"github.com/ppiankov/deckcheck/internal/model"
	"go.uber.org/zap"
)

// Recognizer turns an image into text
type Recognizer interface {
	Recognize(ctx context.Context, img deck.Image) (string, error)
}

// Runner executes an external command with the given stdin
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes the command and returns its stdout
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Tesseract recognizes text by piping images through the tesseract CLI
type Tesseract struct {
	command  string
	language string
	runner   Runner
}

// NewTesseract creates a recognizer from OCR configuration
func NewTesseract(cfg model.OCRConfig) *Tesseract {
	command := cfg.Command
	if command == "" {
		command = "tesseract"
	}
	return &Tesseract{
		command:  command,
		language: cfg.Language,
		runner:   ExecRunner{},
	}
}

// WithRunner replaces the command runner
func (t *Tesseract) WithRunner(r Runner) *Tesseract {
	t.runner = r
	return t
}

// Available reports whether the tesseract binary can be found
func (t *Tesseract) Available() error {
	if _, err := exec.LookPath(t.command); err != nil {
		return fmt.Errorf("ocr command %q not found: %w", t.command, err)
	}
	return nil
}

// Recognize returns the text tesseract finds in the image
func (t *Tesseract) Recognize(ctx context.Context, img deck.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("empty image")
	}

	args := []string{"stdin", "stdout"}
	if t.language != "" {
		args = append(args, "-l", t.language)
	}

	out, err := t.runner.Run(ctx, t.command, args, img.Data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Apply recognizes every image of the deck and appends the text to its slide.
// A failing image is logged and skipped. Returns how many slides gained text.
func Apply(ctx context.Context, rec Recognizer, d *deck.Deck, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	appended := 0
	for _, img := range d.Images {
		if err := ctx.Err(); err != nil {
			return appended, err
		}

		slide := d.Slide(img.Slide)
		if slide == nil {
			log.Warn("image refers to unknown slide", zap.String("image", img.Name), zap.Int("slide", img.Slide))
			continue
		}

		text, err := rec.Recognize(ctx, img)
		if err != nil {
			log.Warn("ocr failed", zap.String("image", img.Name), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		slide.AppendOCR(text)
		appended++
		log.Debug("ocr text appended", zap.String("image", img.Name), zap.Int("slide", img.Slide), zap.Int("chars", len(text)))
	}

	return appended, nil
}

// SaveImages writes the deck's images into dir and returns the written paths
func SaveImages(dir string, images []deck.Image) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images dir: %w", err)
	}

	paths := make([]string, 0, len(images))
	for _, img := range images {
		p := filepath.Join(dir, filepath.Base(img.Name))
		if err := os.WriteFile(p, img.Data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write image %s: %w", img.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
