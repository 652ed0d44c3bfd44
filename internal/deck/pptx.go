package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

const (
	nsDrawing = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRel     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type relationships struct {
	Items []struct {
		ID         string `xml:"Id,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// slideContent is what one slide part yields before images are resolved
type slideContent struct {
	texts    []string
	pictures []string // relationship ids of top-level pictures
}

func parsePPTX(data []byte) ([]model.Slide, []Image, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("not a pptx archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	parts, err := slideOrder(files)
	if err != nil {
		return nil, nil, err
	}

	var slides []model.Slide
	var images []Image

	for i, part := range parts {
		index := i + 1

		raw, err := readPart(files, part)
		if err != nil {
			return nil, nil, err
		}

		content, err := parseSlideXML(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", part, err)
		}

		slides = append(slides, model.Slide{
			Index: index,
			Text:  strings.Join(content.texts, "\n"),
		})

		if len(content.pictures) == 0 {
			continue
		}

		// pictures without a relationship part carry no retrievable data
		targets, err := partRels(files, part)
		if err != nil {
			continue
		}

		for k, rid := range content.pictures {
			target, ok := targets[rid]
			if !ok {
				continue
			}
			img, err := readPart(files, target)
			if err != nil {
				continue
			}
			ext := strings.TrimPrefix(path.Ext(target), ".")
			images = append(images, Image{
				Slide: index,
				Name:  fmt.Sprintf("slide_%d_img_%d.%s", index, k, ext),
				Data:  img,
			})
		}
	}

	return slides, images, nil
}

// slideOrder returns slide part names in presentation order. It follows
// ppt/presentation.xml when present and falls back to slide numbering.
func slideOrder(files map[string]*zip.File) ([]string, error) {
	if ordered := presentationOrder(files); len(ordered) > 0 {
		return ordered, nil
	}

	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for name := range files {
		m := slidePart.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{name: name, n: n})
	}
	if len(found) == 0 {
		return nil, errors.New("no slides found")
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names, nil
}

func presentationOrder(files map[string]*zip.File) []string {
	raw, err := readPart(files, "ppt/presentation.xml")
	if err != nil {
		return nil
	}
	targets, err := partRels(files, "ppt/presentation.xml")
	if err != nil {
		return nil
	}

	var names []string
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Space == nsRel && a.Name.Local == "id" {
				if target, ok := targets[a.Value]; ok {
					if _, exists := files[target]; exists {
						names = append(names, target)
					}
				}
			}
		}
	}
	return names
}

// partRels maps relationship ids of a part to absolute part names
func partRels(files map[string]*zip.File, part string) (map[string]string, error) {
	dir, file := path.Split(part)
	raw, err := readPart(files, dir+"_rels/"+file+".rels")
	if err != nil {
		return nil, err
	}

	var rels relationships
	if err := xml.Unmarshal(raw, &rels); err != nil {
		return nil, err
	}

	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		if strings.EqualFold(r.TargetMode, "External") {
			continue
		}
		target := r.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join(path.Dir(part), target)
		}
		targets[r.ID] = target
	}
	return targets, nil
}

func readPart(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseSlideXML collects the text of each top-level shape and the
// relationship ids of top-level pictures. Shape text joins runs within a
// paragraph and paragraphs with newlines. Blank shapes are dropped.
func parseSlideXML(raw []byte) (slideContent, error) {
	var content slideContent

	dec := xml.NewDecoder(bytes.NewReader(raw))

	var stack []string
	var paragraphs []string
	var para strings.Builder
	inShape, inPicture, inText := false, false, false

	parent := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return content, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "sp" && parent() == "spTree":
				inShape = true
				paragraphs = paragraphs[:0]
			case t.Name.Local == "pic" && parent() == "spTree":
				inPicture = true
			case inShape && t.Name.Space == nsDrawing && t.Name.Local == "p":
				para.Reset()
			case inShape && t.Name.Space == nsDrawing && t.Name.Local == "t":
				inText = true
			case inShape && t.Name.Space == nsDrawing && t.Name.Local == "br":
				para.WriteString("\n")
			case inPicture && t.Name.Local == "blip":
				for _, a := range t.Attr {
					if a.Name.Space == nsRel && a.Name.Local == "embed" {
						content.pictures = append(content.pictures, a.Value)
					}
				}
			}
			stack = append(stack, t.Name.Local)

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch {
			case t.Name.Local == "sp" && inShape && parent() == "spTree":
				inShape = false
				if text := strings.TrimSpace(strings.Join(paragraphs, "\n")); text != "" {
					content.texts = append(content.texts, text)
				}
			case t.Name.Local == "pic" && inPicture && parent() == "spTree":
				inPicture = false
			case inShape && t.Name.Space == nsDrawing && t.Name.Local == "p":
				paragraphs = append(paragraphs, para.String())
			case t.Name.Space == nsDrawing && t.Name.Local == "t":
				inText = false
			}
		}
	}

	return content, nil
}
