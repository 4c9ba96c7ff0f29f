// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package docxtmpl

import "strings"

// preserveMarkers guard paragraphs that carry non text content and must
// survive the sweep even when their text is empty.
var preserveMarkers = []string{
	"<w:drawing",
	"<w:pict",
	"<w:object",
	"<a:blip",
	"<a:graphic",
	"<wp:docPr",
	"<w:hyperlink",
	"<w:bookmarkStart",
	"<w:ins",
	"<w:del",
	"<m:oMath",
}

// sweepEmptyParagraphs removes paragraphs whose runs were emptied by marker
// substitution. Paragraphs without any run are intentional spacing and stay.
// On any structural surprise the input is returned unswept.
func sweepEmptyParagraphs(xml string) (out string) {
	defer func() {
		if recover() != nil {
			out = xml
		}
	}()

	var result strings.Builder
	pos := 0
	for {
		start := nextParagraph(xml, pos)
		if start < 0 {
			result.WriteString(xml[pos:])
			return result.String()
		}
		end := strings.Index(xml[start:], "</w:p>")
		if end < 0 {
			result.WriteString(xml[pos:])
			return result.String()
		}
		end = start + end + len("</w:p>")

		paragraph := xml[start:end]
		result.WriteString(xml[pos:start])
		if !sweepable(paragraph) {
			result.WriteString(paragraph)
		}
		pos = end
	}
}

// sweepable reports whether the paragraph holds runs, no preserved content
// and no remaining text.
func sweepable(paragraph string) bool {
	if !strings.Contains(paragraph, "<w:r>") && !strings.Contains(paragraph, "<w:r ") {
		return false
	}
	for _, marker := range preserveMarkers {
		if strings.Contains(paragraph, marker) {
			return false
		}
	}
	for _, segment := range findTextSegments(paragraph) {
		if strings.TrimSpace(segment.text) != "" {
			return false
		}
	}
	return true
}

// nextParagraph finds the next <w:p> start at or after pos, skipping
// <w:pPr> and similar prefixed tags.
func nextParagraph(xml string, pos int) int {
	for {
		idx := strings.Index(xml[pos:], "<w:p")
		if idx < 0 {
			return -1
		}
		idx += pos
		after := idx + len("<w:p")
		if after < len(xml) {
			if c := xml[after]; c == '>' || c == ' ' {
				return idx
			}
		}
		pos = after
	}
}
