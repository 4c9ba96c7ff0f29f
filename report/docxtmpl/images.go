// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package docxtmpl

import (
	"fmt"
	"strings"
)

// Image is a picture value: placeholders resolving to an *Image are
// replaced with an inline drawing at the given pixel size.
type Image struct {
	Data     []byte
	Ext      string // jpg, png, gif
	WidthPx  int
	HeightPx int
}

// mediaFile is an image payload scheduled for word/media.
type mediaFile struct {
	name string
	ext  string
	rID  string
	data []byte
}

// emuPerPixel converts CSS pixels at 96 dpi to English Metric Units.
const emuPerPixel = 9525

// docPr ids start high to stay clear of ids already used by the template.
const docPrBase = 9000

// spliceImage registers the media part and returns run XML that closes the
// current text run, draws the picture and reopens a text run, keeping the
// document well formed when the marker sits inside a <w:t>.
func (render *renderer) spliceImage(image *Image) string {
	if image == nil || len(image.Data) == 0 {
		return ""
	}

	n := len(render.media) + 1
	ext := strings.ToLower(strings.TrimPrefix(image.Ext, "."))
	if ext == "jpeg" || ext == "" {
		ext = "jpg"
	}
	file := mediaFile{
		name: fmt.Sprintf("tmpl_image%d.%s", n, ext),
		ext:  ext,
		rID:  fmt.Sprintf("rIdTmplImg%d", n),
		data: image.Data,
	}
	render.media = append(render.media, file)

	width := image.WidthPx
	if width <= 0 {
		width = 150
	}
	height := image.HeightPx
	if height <= 0 {
		height = 200
	}

	return `</w:t></w:r><w:r>` +
		drawingXML(file.rID, docPrBase+n, width*emuPerPixel, height*emuPerPixel) +
		`</w:r><w:r><w:t xml:space="preserve">`
}

// drawingXML emits an inline wordprocessing drawing referencing the media
// relationship.
func drawingXML(rID string, docPrID, widthEMU, heightEMU int) string {
	return fmt.Sprintf(`<w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%[3]d" cy="%[4]d"/>`+
		`<wp:docPr id="%[2]d" name="Picture %[2]d"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%[2]d" name="Picture %[2]d"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%[1]s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[3]d" cy="%[4]d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic>`+
		`</a:graphicData>`+
		`</a:graphic>`+
		`</wp:inline>`+
		`</w:drawing>`,
		rID, docPrID, widthEMU, heightEMU)
}

// patchRelationships appends a relationship per added media file.
func patchRelationships(data []byte, media []mediaFile) []byte {
	if len(media) == 0 {
		return data
	}

	var entries strings.Builder
	for _, file := range media {
		entries.WriteString(fmt.Sprintf(
			`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`,
			file.rID, file.name))
	}

	xml := string(data)
	idx := strings.LastIndex(xml, "</Relationships>")
	if idx < 0 {
		return data
	}
	return []byte(xml[:idx] + entries.String() + xml[idx:])
}

// contentTypeFor maps a media extension to its MIME type.
func contentTypeFor(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// patchContentTypes registers default content types for the extensions of
// the added media files.
func patchContentTypes(data []byte, media []mediaFile) []byte {
	if len(media) == 0 {
		return data
	}

	xml := string(data)
	var entries strings.Builder
	seen := map[string]bool{}
	for _, file := range media {
		if seen[file.ext] {
			continue
		}
		seen[file.ext] = true
		if strings.Contains(xml, fmt.Sprintf(`Extension="%s"`, file.ext)) {
			continue
		}
		entries.WriteString(fmt.Sprintf(
			`<Default Extension="%s" ContentType="%s"/>`,
			file.ext, contentTypeFor(file.ext)))
	}
	if entries.Len() == 0 {
		return data
	}

	idx := strings.LastIndex(xml, "</Types>")
	if idx < 0 {
		return data
	}
	return []byte(xml[:idx] + entries.String() + xml[idx:])
}
