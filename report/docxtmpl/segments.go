// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package docxtmpl

import (
	"sort"
	"strings"
)

// textSegment is the inner text of one <w:t> element.
type textSegment struct {
	start int // xml index right after the opening tag
	end   int // xml index of </w:t>
	text  string
}

// findTextSegments locates every non empty <w:t> element.
func findTextSegments(xml string) []textSegment {
	var segments []textSegment
	pos := 0
	for {
		idx := strings.Index(xml[pos:], "<w:t")
		if idx < 0 {
			break
		}
		idx += pos

		after := idx + len("<w:t")
		if after >= len(xml) {
			break
		}
		// reject <w:tab, <w:tr and friends
		if c := xml[after]; c != '>' && c != ' ' && c != '/' {
			pos = after
			continue
		}

		gt := strings.IndexByte(xml[idx:], '>')
		if gt < 0 {
			break
		}
		gt += idx
		if xml[gt-1] == '/' {
			pos = gt + 1
			continue
		}

		close := strings.Index(xml[gt:], "</w:t>")
		if close < 0 {
			break
		}
		close += gt

		segments = append(segments, textSegment{
			start: gt + 1,
			end:   close,
			text:  unescapeXML(xml[gt+1 : close]),
		})
		pos = close + len("</w:t>")
	}
	return segments
}

// repairPlaceholders merges {{...}} markers that editors split across
// multiple text runs back into the run where the marker starts, so later
// passes can treat every placeholder as a contiguous string.
func repairPlaceholders(xml string) string {
	segments := findTextSegments(xml)
	if len(segments) == 0 {
		return xml
	}

	offsets := make([]int, len(segments)+1)
	var full strings.Builder
	for i, segment := range segments {
		offsets[i] = full.Len()
		full.WriteString(segment.text)
	}
	offsets[len(segments)] = full.Len()
	text := full.String()

	spans := findMarkerSpans(text)
	if len(spans) == 0 {
		return xml
	}

	// reassign each marker's full text to the segment where it starts
	newTexts := make([]string, len(segments))
	for i := range segments {
		var out strings.Builder
		pos := offsets[i]
		for pos < offsets[i+1] {
			if span, ok := spanStartingAt(spans, pos); ok {
				out.WriteString(text[span[0]:span[1]])
				pos = span[1]
				continue
			}
			if spanCovering(spans, pos) {
				pos++
				continue
			}
			out.WriteByte(text[pos])
			pos++
		}
		newTexts[i] = out.String()
	}

	var out strings.Builder
	last := 0
	for i, segment := range segments {
		out.WriteString(xml[last:segment.start])
		out.WriteString(escapeXML(newTexts[i]))
		last = segment.end
	}
	out.WriteString(xml[last:])
	return out.String()
}

// findMarkerSpans returns the [start, end) ranges of every {{...}} marker.
func findMarkerSpans(text string) [][2]int {
	var spans [][2]int
	pos := 0
	for {
		open := strings.Index(text[pos:], "{{")
		if open < 0 {
			break
		}
		open += pos
		close := strings.Index(text[open:], "}}")
		if close < 0 {
			break
		}
		end := open + close + 2
		spans = append(spans, [2]int{open, end})
		pos = end
	}
	return spans
}

func spanStartingAt(spans [][2]int, pos int) ([2]int, bool) {
	i := sort.Search(len(spans), func(i int) bool { return spans[i][0] >= pos })
	if i < len(spans) && spans[i][0] == pos {
		return spans[i], true
	}
	return [2]int{}, false
}

func spanCovering(spans [][2]int, pos int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i][1] > pos })
	return i < len(spans) && spans[i][0] < pos
}

// unescapeXML reverses the <w:t> escaping.
func unescapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return replacer.Replace(s)
}
