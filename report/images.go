// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package report

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/report/docxtmpl"
)

// imageFromStore loads a stored file, fixes its orientation, fits it to the
// box and re-encodes as PNG for embedding.
func (composer *Composer) imageFromStore(ctx context.Context, fileName string, width, height int) (*docxtmpl.Image, error) {
	reader, err := composer.store.Open(ctx, fileName)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	if closeErr := reader.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return encodeOriented(data, width, height)
}

// imageFromDataURL decodes a base64 data-url into an embeddable image.
func (composer *Composer) imageFromDataURL(dataURL string, width, height int) (*docxtmpl.Image, error) {
	data, _, err := imagestore.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return encodeOriented(data, width, height)
}

// resized re-fits an already decoded embed image into a different box.
func (composer *Composer) resized(img *docxtmpl.Image, width, height int) *docxtmpl.Image {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return img
	}
	return encodePNG(imaging.Fit(decoded, width, height, imaging.Lanczos), width, height)
}

// encodeOriented normalizes arbitrary upload bytes into a PNG embed image.
// Unrecognized source formats fail decoding and are skipped by the caller.
func encodeOriented(data []byte, width, height int) (*docxtmpl.Image, error) {
	img, err := imagestore.LoadOriented(data, width, height)
	if err != nil {
		return nil, err
	}
	return encodePNG(img, width, height), nil
}

func encodePNG(img image.Image, width, height int) *docxtmpl.Image {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	bounds := img.Bounds()
	if bounds.Dx() < width {
		width = bounds.Dx()
	}
	if bounds.Dy() < height {
		height = bounds.Dy()
	}
	return &docxtmpl.Image{
		Data:     buf.Bytes(),
		Ext:      "png",
		WidthPx:  width,
		HeightPx: height,
	}
}
