package deck

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slideHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:nvGrpSpPr/><p:grpSpPr/>`

const slideFooter = `</p:spTree></p:cSld></p:sld>`

func shape(paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:nvSpPr/><p:txBody><a:bodyPr/>`)
	for _, p := range paragraphs {
		b.WriteString(`<a:p>`)
		for _, run := range strings.Split(p, "|") {
			fmt.Fprintf(&b, `<a:r><a:rPr lang="en-US"/><a:t>%s</a:t></a:r>`, run)
		}
		b.WriteString(`</a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}

func picture(rid string) string {
	return `<p:pic><p:nvPicPr/><p:blipFill><a:blip r:embed="` + rid + `"/></p:blipFill></p:pic>`
}

func buildPPTX(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParse_PPTX(t *testing.T) {
	data := buildPPTX(t, map[string]string{
		"ppt/slides/slide1.xml": slideHeader + shape("Revenue was |$2 million| in Q1") + shape("   ") + slideFooter,
		"ppt/slides/slide2.xml": slideHeader + shape("Our Q1 revenue reached $5 million", "Growth 10%") + picture("rId2") + slideFooter,
		"ppt/slides/_rels/slide2.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
</Relationships>`,
		"ppt/media/image1.png": "PNGDATA",
		"ppt/slides/slide10.xml": slideHeader + slideFooter,
	})

	d, err := Parse("deck.pptx", data)
	require.NoError(t, err)

	assert.Equal(t, FormatPPTX, d.Format)
	require.Len(t, d.Slides, 3)
	assert.Equal(t, 1, d.Slides[0].Index)
	assert.Equal(t, "Revenue was $2 million in Q1", d.Slides[0].Text)
	assert.Equal(t, "Our Q1 revenue reached $5 million\nGrowth 10%", d.Slides[1].Text)
	assert.Equal(t, 3, d.Slides[2].Index)
	assert.Empty(t, d.Slides[2].Text)

	require.Len(t, d.Images, 1)
	assert.Equal(t, 2, d.Images[0].Slide)
	assert.Equal(t, "slide_2_img_0.png", d.Images[0].Name)
	assert.Equal(t, []byte("PNGDATA"), d.Images[0].Data)
}

func TestParse_PPTXPresentationOrder(t *testing.T) {
	data := buildPPTX(t, map[string]string{
		"ppt/presentation.xml": `<p:presentation xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:sldIdLst><p:sldId id="256" r:id="rId3"/><p:sldId id="257" r:id="rId2"/></p:sldIdLst></p:presentation>`,
		"ppt/_rels/presentation.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId2" Target="slides/slide1.xml"/><Relationship Id="rId3" Target="slides/slide2.xml"/></Relationships>`,
		"ppt/slides/slide1.xml": slideHeader + shape("second") + slideFooter,
		"ppt/slides/slide2.xml": slideHeader + shape("first") + slideFooter,
	})

	d, err := Parse("deck.pptx", data)
	require.NoError(t, err)
	require.Len(t, d.Slides, 2)
	assert.Equal(t, "first", d.Slides[0].Text)
	assert.Equal(t, "second", d.Slides[1].Text)
}

func TestParse_PPTXInvalid(t *testing.T) {
	_, err := Parse("deck.pptx", []byte("not a zip"))
	assert.Error(t, err)

	_, err = Parse("deck.pptx", buildPPTX(t, map[string]string{"docProps/app.xml": "<x/>"}))
	assert.Error(t, err)
}

func TestParse_HTMLSections(t *testing.T) {
	page := `<html><head><title>Board deck</title><style>.x{}</style></head><body>
	<div class="slides">
	  <section><h1>Revenue</h1><p>Revenue was $2 million in Q1</p></section>
	  <section>
	    <section><p>Our Q1 revenue reached $5 million</p><script>var x = 99;</script></section>
	    <section><ul><li>Growth 10%</li><li>Churn 2%</li></ul><aside class="notes">speaker 42</aside></section>
	  </section>
	</div></body></html>`

	d, err := Parse("talk.html", []byte(page))
	require.NoError(t, err)

	require.Len(t, d.Slides, 3)
	assert.Equal(t, "Revenue\nRevenue was $2 million in Q1", d.Slides[0].Text)
	assert.Equal(t, "Our Q1 revenue reached $5 million", d.Slides[1].Text)
	assert.Equal(t, "Growth 10%\nChurn 2%", d.Slides[2].Text)
	assert.Equal(t, 3, d.Slides[2].Index)
}

func TestParse_HTMLWithoutSections(t *testing.T) {
	d, err := Parse("page.htm", []byte(`<html><head><title>T</title></head><body><p>Only 7 slides</p></body></html>`))
	require.NoError(t, err)
	require.Len(t, d.Slides, 1)
	assert.Equal(t, "Only 7 slides", d.Slides[0].Text)
}

func TestParse_Structured(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"deck.json", `[{"slide": 1, "text": "Revenue $2M"}, {"text": "Revenue $5M"}, {"slide": 7}]`},
		{"deck.json", `{"slides": [{"slide": 1, "text": "Revenue $2M"}, {"text": "Revenue $5M"}, {"slide": 7}]}`},
		{"deck.yaml", "- slide: 1\n  text: Revenue $2M\n- text: Revenue $5M\n- slide: 7\n"},
		{"deck.yml", "slides:\n  - slide: 1\n    text: Revenue $2M\n  - text: Revenue $5M\n  - slide: 7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.name, []byte(tt.data))
			require.NoError(t, err)
			require.Len(t, d.Slides, 3)
			assert.Equal(t, 1, d.Slides[0].Index)
			assert.Equal(t, 2, d.Slides[1].Index)
			assert.Equal(t, "Revenue $5M", d.Slides[1].Text)
			assert.Equal(t, 7, d.Slides[2].Index)
			assert.Empty(t, d.Slides[2].Text)
		})
	}
}

func TestParse_StructuredEmpty(t *testing.T) {
	_, err := Parse("deck.json", []byte(`[]`))
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("Q1 Board.PPTX")
	require.NoError(t, err)
	assert.Equal(t, FormatPPTX, f)

	_, err = FormatOf("notes.key")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.True(t, Supported("a.yml"))
	assert.False(t, Supported("a.pdf"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"slide":1,"text":"hello"}]`), 0644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, d.Source)
	assert.Equal(t, "deck.json", d.Subject())
	assert.NotNil(t, d.Slide(1))
	assert.Nil(t, d.Slide(2))

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "deck.odp"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
