// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package docxtmpl_test

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaleinspect/inspectd/report/docxtmpl"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`</Types>`

const relationshipsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`</Relationships>`

// buildDocx assembles a minimal template archive around the given body
// paragraphs.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, data := range map[string]string{
		"[Content_Types].xml":          contentTypesXML,
		"word/_rels/document.xml.rels": relationshipsXML,
		"word/document.xml":            document,
	} {
		w, err := writer.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

// partOf extracts one file of a rendered archive.
func partOf(t *testing.T, data []byte, name string) string {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		return string(content)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func render(t *testing.T, body string, data map[string]interface{}) string {
	t.Helper()

	template, err := docxtmpl.Parse(buildDocx(t, body))
	require.NoError(t, err)
	rendered, err := template.Render(data)
	require.NoError(t, err)
	return partOf(t, rendered, "word/document.xml")
}

func TestParseRequiresDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	w, err := writer.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(contentTypesXML))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	_, err = docxtmpl.Parse(buf.Bytes())
	require.Error(t, err)

	_, err = docxtmpl.Parse([]byte("not a zip"))
	require.Error(t, err)
}

func TestRenderScalar(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>Сайн уу, {{name}}!</w:t></w:r></w:p>`,
		map[string]interface{}{"name": "Бат"})

	assert.Contains(t, doc, "Сайн уу, Бат!")
	assert.NotContains(t, doc, "{{")
}

func TestRenderFlatKeyWinsOverNested(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>{{d.date}}</w:t></w:r></w:p>`,
		map[string]interface{}{
			"d.date": "flat",
			"d":      map[string]interface{}{"date": "nested"},
		})
	assert.Contains(t, doc, "flat")
	assert.NotContains(t, doc, "nested")
}

func TestRenderNestedLookup(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>{{d.metadata.date}}</w:t></w:r></w:p>`,
		map[string]interface{}{
			"d": map[string]interface{}{
				"metadata": map[string]interface{}{"date": "2024-05-01"},
			},
		})
	assert.Contains(t, doc, "2024-05-01")
}

func TestRenderEscapesValues(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>{{note}}</w:t></w:r></w:p>`,
		map[string]interface{}{"note": `a<b & "c"`})
	assert.Contains(t, doc, "a&lt;b &amp; &quot;c&quot;")
}

func TestRenderUnresolvedBecomesEmpty(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>X{{missing.path}}Y</w:t></w:r></w:p>`,
		map[string]interface{}{})
	assert.Contains(t, doc, "XY")
}

func TestRenderRepairsSplitRuns(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>{{na</w:t></w:r><w:r><w:t>me}} байна</w:t></w:r></w:p>`,
		map[string]interface{}{"name": "Бат"})
	assert.Contains(t, doc, "Бат")
	assert.NotContains(t, doc, "{{")
}

func TestConditionalBlockInline(t *testing.T) {
	body := `<w:p><w:r><w:t>{{#flag}}тийм {{/flag}}үргэлж</w:t></w:r></w:p>`

	doc := render(t, body, map[string]interface{}{"flag": true})
	assert.Contains(t, doc, "тийм үргэлж")

	doc = render(t, body, map[string]interface{}{"flag": false})
	assert.NotContains(t, doc, "тийм")
	assert.Contains(t, doc, "үргэлж")
}

func TestConditionalBlockDropsParagraphs(t *testing.T) {
	body := `<w:p><w:r><w:t>Дээр</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{#details}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>нууц мэдээлэл</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{/details}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Доор</w:t></w:r></w:p>`

	doc := render(t, body, map[string]interface{}{})
	assert.Contains(t, doc, "Дээр")
	assert.Contains(t, doc, "Доор")
	assert.NotContains(t, doc, "нууц мэдээлэл")
	assert.NotContains(t, doc, "{{")

	doc = render(t, body, map[string]interface{}{
		"details": map[string]interface{}{"any": "value"},
	})
	assert.Contains(t, doc, "нууц мэдээлэл")
}

func TestLoopRepeatsParagraphs(t *testing.T) {
	body := `<w:p><w:r><w:t>{{#items}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{index}}/{{total}}. {{question}}{{#isLast}} сүүлчийнх{{/isLast}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{/items}}</w:t></w:r></w:p>`

	doc := render(t, body, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"question": "Хүрээ"},
			map[string]interface{}{"question": "Тавцан"},
		},
	})

	assert.Contains(t, doc, "1/2. Хүрээ")
	assert.Contains(t, doc, "2/2. Тавцан сүүлчийнх")
	assert.NotContains(t, doc, "1/2. Хүрээ сүүлчийнх")
	assert.NotContains(t, doc, "{{")
}

func TestLoopScalarItemsBindValue(t *testing.T) {
	body := `<w:p><w:r><w:t>{{#names}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>- {{value}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{/names}}</w:t></w:r></w:p>`

	doc := render(t, body, map[string]interface{}{
		"names": []interface{}{"Бат", "Дорж"},
	})
	assert.Contains(t, doc, "- Бат")
	assert.Contains(t, doc, "- Дорж")
}

func TestEmptyLoopDropsRegion(t *testing.T) {
	body := `<w:p><w:r><w:t>{{#items}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{question}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{/items}}</w:t></w:r></w:p>`

	doc := render(t, body, map[string]interface{}{"items": []interface{}{}})
	assert.NotContains(t, doc, "{{")
	assert.NotContains(t, doc, "question")
}

func TestSweepRemovesEmptiedParagraphs(t *testing.T) {
	body := `<w:p><w:r><w:t>Хадгалах</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{gone}}</w:t></w:r></w:p>` +
		`<w:p></w:p>`

	doc := render(t, body, map[string]interface{}{})
	assert.Contains(t, doc, "Хадгалах")
	// the emptied paragraph is swept, the run-less spacing paragraph stays
	assert.Equal(t, 2, strings.Count(doc, "<w:p>"))
}

func TestRenderImage(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	body := `<w:p><w:r><w:t>Гарын үсэг: {{signature}}</w:t></w:r></w:p>`

	template, err := docxtmpl.Parse(buildDocx(t, body))
	require.NoError(t, err)
	rendered, err := template.Render(map[string]interface{}{
		"signature": &docxtmpl.Image{Data: payload, Ext: "png", WidthPx: 10, HeightPx: 20},
	})
	require.NoError(t, err)

	doc := partOf(t, rendered, "word/document.xml")
	assert.Contains(t, doc, "<w:drawing>")
	assert.Contains(t, doc, `r:embed="rIdTmplImg1"`)
	assert.Contains(t, doc, `cx="95250"`)
	assert.Contains(t, doc, `cy="190500"`)
	assert.Contains(t, doc, "Гарын үсэг: ")

	rels := partOf(t, rendered, "word/_rels/document.xml.rels")
	assert.Contains(t, rels, `Id="rIdTmplImg1"`)
	assert.Contains(t, rels, `Target="media/tmpl_image1.png"`)

	types := partOf(t, rendered, "[Content_Types].xml")
	assert.Contains(t, types, `Extension="png"`)

	assert.Equal(t, string(payload), partOf(t, rendered, "word/media/tmpl_image1.png"))
}

func TestRenderNilImageBecomesEmpty(t *testing.T) {
	doc := render(t,
		`<w:p><w:r><w:t>A{{photo}}B</w:t></w:r></w:p>`,
		map[string]interface{}{"photo": (*docxtmpl.Image)(nil)})
	assert.Contains(t, doc, "AB")
	assert.NotContains(t, doc, "<w:drawing>")
}

func TestUnterminatedBlockFails(t *testing.T) {
	template, err := docxtmpl.Parse(buildDocx(t,
		`<w:p><w:r><w:t>{{#items}}хэзээ ч хаагдахгүй</w:t></w:r></w:p>`))
	require.NoError(t, err)

	_, err = template.Render(map[string]interface{}{})
	require.Error(t, err)
}
