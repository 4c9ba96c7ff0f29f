// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package docxtmpl

import (
	"strconv"
	"strings"
)

// scope resolves placeholder paths against a data map with a parent
// fallback for loop contexts.
type scope struct {
	vars   map[string]interface{}
	parent *scope
}

func newScope(vars map[string]interface{}, parent *scope) *scope {
	return &scope{vars: vars, parent: parent}
}

// lookup resolves a path. A literal flat key wins over nested traversal so
// templates can address pre flattened values like "metadata.date" directly.
func (sc *scope) lookup(path string) (interface{}, bool) {
	for s := sc; s != nil; s = s.parent {
		if value, ok := s.vars[path]; ok {
			return value, true
		}
		if value, ok := lookupNested(s.vars, path); ok {
			return value, true
		}
	}
	return nil, false
}

func lookupNested(vars map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = vars
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// truthy decides whether a conditional block renders.
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// renderer tracks media added while rendering a single document.
type renderer struct {
	data  map[string]interface{}
	media []mediaFile
}

// renderBlocks expands every {{#key}}...{{/key}} region: falsy values drop
// the region, maps render it once in a child scope and slices repeat it per
// item with loop variables index, total, isFirst and isLast.
func (render *renderer) renderBlocks(xml string, sc *scope) (string, error) {
	for {
		open, key, ok := findBlockOpen(xml)
		if !ok {
			return xml, nil
		}

		openEnd := open + len("{{#"+key+"}}")
		closeStart, closeEnd, ok := findBlockClose(xml, key, openEnd)
		if !ok {
			return "", Error.New("unterminated block {{#%s}}", key)
		}

		regionStart, innerStart, innerEnd, regionEnd := blockRegion(xml, open, openEnd, closeStart, closeEnd)
		inner := xml[innerStart:innerEnd]

		value, _ := sc.lookup(key)
		var replacement strings.Builder

		switch v := value.(type) {
		case []interface{}:
			total := len(v)
			for i, item := range v {
				vars := map[string]interface{}{
					"index":   i + 1,
					"total":   total,
					"isFirst": i == 0,
					"isLast":  i == total-1,
				}
				if record, ok := item.(map[string]interface{}); ok {
					for k, val := range record {
						vars[k] = val
					}
				} else {
					vars["value"] = item
				}
				rendered, err := render.renderRegion(inner, newScope(vars, sc))
				if err != nil {
					return "", err
				}
				replacement.WriteString(rendered)
			}
		case map[string]interface{}:
			if len(v) > 0 {
				rendered, err := render.renderRegion(inner, newScope(v, sc))
				if err != nil {
					return "", err
				}
				replacement.WriteString(rendered)
			}
		default:
			if truthy(value) {
				rendered, err := render.renderRegion(inner, sc)
				if err != nil {
					return "", err
				}
				replacement.WriteString(rendered)
			}
		}

		xml = xml[:regionStart] + replacement.String() + xml[regionEnd:]
	}
}

// renderRegion fully renders a block body in its own scope so nested blocks
// and scalars resolve against the loop item first.
func (render *renderer) renderRegion(xml string, sc *scope) (string, error) {
	rendered, err := render.renderBlocks(xml, sc)
	if err != nil {
		return "", err
	}
	return render.renderScalars(rendered, sc), nil
}

// renderScalars substitutes the remaining {{path}} markers. Unresolvable
// paths render as empty text. Image values splice a drawing run in place of
// the marker.
func (render *renderer) renderScalars(xml string, sc *scope) string {
	var out strings.Builder
	pos := 0
	for {
		open := strings.Index(xml[pos:], "{{")
		if open < 0 {
			out.WriteString(xml[pos:])
			return out.String()
		}
		open += pos
		close := strings.Index(xml[open:], "}}")
		if close < 0 {
			out.WriteString(xml[pos:])
			return out.String()
		}
		close += open

		path := strings.TrimSpace(xml[open+2 : close])
		out.WriteString(xml[pos:open])
		pos = close + 2

		if path == "" || strings.HasPrefix(path, "#") || strings.HasPrefix(path, "/") {
			continue
		}

		value, ok := sc.lookup(path)
		if !ok || value == nil {
			continue
		}
		if image, isImage := value.(*Image); isImage {
			out.WriteString(render.spliceImage(image))
			continue
		}
		out.WriteString(escapeXML(formatValue(value)))
	}
}

// formatValue renders a scalar for document text.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// findBlockOpen finds the leftmost {{#key}} marker.
func findBlockOpen(xml string) (start int, key string, ok bool) {
	open := strings.Index(xml, "{{#")
	if open < 0 {
		return 0, "", false
	}
	close := strings.Index(xml[open:], "}}")
	if close < 0 {
		return 0, "", false
	}
	return open, strings.TrimSpace(xml[open+3 : open+close]), true
}

// findBlockClose finds the matching {{/key}}, counting nested blocks of the
// same key.
func findBlockClose(xml, key string, from int) (start, end int, ok bool) {
	openMarker := "{{#" + key + "}}"
	closeMarker := "{{/" + key + "}}"
	depth := 0
	pos := from
	for {
		close := strings.Index(xml[pos:], closeMarker)
		if close < 0 {
			return 0, 0, false
		}
		close += pos

		open := strings.Index(xml[pos:], openMarker)
		if open >= 0 && open+pos < close {
			depth++
			pos = open + pos + len(openMarker)
			continue
		}
		if depth == 0 {
			return close, close + len(closeMarker), true
		}
		depth--
		pos = close + len(closeMarker)
	}
}

// blockRegion widens a marker pair to whole paragraphs when the markers sit
// in different paragraphs, dropping the marker paragraphs themselves.
// Markers inside a single paragraph repeat only the text between them.
func blockRegion(xml string, open, openEnd, closeStart, closeEnd int) (regionStart, innerStart, innerEnd, regionEnd int) {
	openPara := paragraphAround(xml, open)
	closePara := paragraphAround(xml, closeStart)

	if openPara == closePara {
		return open, openEnd, closeStart, closeEnd
	}

	openParaEnd := paragraphEnd(xml, open)
	closeParaStart := closePara
	return openPara, openParaEnd, closeParaStart, paragraphEnd(xml, closeStart)
}

// paragraphAround returns the start index of the <w:p> containing pos, or
// pos itself when none encloses it.
func paragraphAround(xml string, pos int) int {
	start := strings.LastIndex(xml[:pos], "<w:p ")
	if alt := strings.LastIndex(xml[:pos], "<w:p>"); alt > start {
		start = alt
	}
	if start < 0 {
		return pos
	}
	end := strings.Index(xml[start:], "</w:p>")
	if end < 0 || start+end < pos {
		return pos
	}
	return start
}

// paragraphEnd returns the index just past the </w:p> containing pos.
func paragraphEnd(xml string, pos int) int {
	end := strings.Index(xml[pos:], "</w:p>")
	if end < 0 {
		return pos
	}
	return pos + end + len("</w:p>")
}
