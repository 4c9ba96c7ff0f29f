// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package imagestore

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	_ "golang.org/x/image/bmp"  // register bmp decoding
	_ "golang.org/x/image/webp" // register webp decoding
)

// Default rendering box for question images embedded into documents.
const (
	DefaultThumbWidth  = 150
	DefaultThumbHeight = 200
)

// LoadOriented decodes image bytes, applies the EXIF orientation and scales
// the result down to fit the given box, preserving the aspect ratio. Zero
// bounds fall back to the default thumbnail box.
func LoadOriented(data []byte, maxWidth, maxHeight int) (image.Image, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultThumbWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultThumbHeight
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidMedia.Wrap(err)
	}

	img = applyOrientation(img, orientationOf(data))

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}
	return img, nil
}

// orientationOf reads the EXIF orientation tag, 1 when absent.
func orientationOf(data []byte) int {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation normalizes the pixels so the stored image renders upright
// without the EXIF tag.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
