// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package docxtmpl renders Word documents from a .docx template carrying
// {{placeholder}} markers. It supports scalar substitution with nested and
// flat key lookup, conditional and repeating {{#key}}...{{/key}} blocks,
// inline image embedding and a final sweep of template-only paragraphs.
package docxtmpl

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default docxtmpl errs class.
var Error = errs.Class("docxtmpl")

const documentPart = "word/document.xml"

// Template is a parsed .docx template. It is safe to render concurrently
// because rendering never mutates the parsed parts.
type Template struct {
	parts []part
}

type part struct {
	name string
	data []byte
	mode uint16
}

// Open reads a template from disk.
func Open(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return Parse(data)
}

// Parse reads a template from .docx bytes.
func Parse(data []byte) (*Template, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, Error.Wrap(err)
	}

	template := &Template{}
	found := false
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, Error.Wrap(errs.Combine(err, rc.Close()))
		}
		if err := rc.Close(); err != nil {
			return nil, Error.Wrap(err)
		}
		if file.Name == documentPart {
			found = true
		}
		template.parts = append(template.parts, part{
			name: file.Name,
			data: content,
			mode: file.FileHeader.Flags,
		})
	}
	if !found {
		return nil, Error.New("template has no %s part", documentPart)
	}
	return template, nil
}

// Render produces a finished document from the template and data.
func (template *Template) Render(data map[string]interface{}) ([]byte, error) {
	var document []byte
	for _, p := range template.parts {
		if p.name == documentPart {
			document = p.data
			break
		}
	}

	render := &renderer{data: data}

	xml := repairPlaceholders(string(document))
	xml, err := render.renderBlocks(xml, newScope(data, nil))
	if err != nil {
		return nil, err
	}
	xml = render.renderScalars(xml, newScope(data, nil))
	xml = sweepEmptyParagraphs(xml)

	return template.rebuild([]byte(xml), render.media)
}

// rebuild writes the zip back out with the hydrated document part, added
// media files and patched relationship and content type parts.
func (template *Template) rebuild(document []byte, media []mediaFile) ([]byte, error) {
	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, p := range template.parts {
		data := p.data
		switch p.name {
		case documentPart:
			data = document
		case "word/_rels/document.xml.rels":
			data = patchRelationships(data, media)
		case "[Content_Types].xml":
			data = patchContentTypes(data, media)
		}

		w, err := writer.Create(p.name)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	for _, file := range media {
		w, err := writer.Create("word/media/" + file.name)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if _, err := w.Write(file.data); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	return out.Bytes(), nil
}

// escapeXML escapes text for a <w:t> element.
func escapeXML(s string) string {
	var out strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		case '"':
			out.WriteString("&quot;")
		case '\'':
			out.WriteString("&apos;")
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
