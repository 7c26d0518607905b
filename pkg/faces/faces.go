// Package faces holds face bounding boxes, the detector interface and the
// helpers that turn a detection into an embeddable crop.
package faces

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	// Registered decoders for uploaded stills.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyBox is returned when a box does not overlap the image.
var ErrEmptyBox = errors.New("face box is outside the image")

// Box is a detected face in pixel coordinates, top-left (X1,Y1) inclusive and
// bottom-right (X2,Y2) exclusive.
type Box struct {
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float32 `json:"confidence,omitempty"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detector finds faces in an encoded image.
type Detector interface {
	// Detect returns the faces found in img, in the detector's order.
	Detect(ctx context.Context, img []byte) ([]Box, error)
}

// CropQuality is the JPEG quality of the crops handed to face embedders.
const CropQuality = 95

// Crop cuts box out of the encoded image and re-encodes the region as JPEG.
// The box is clamped to the image bounds first.
func Crop(img []byte, box Box) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	r := box.Rect().Canon().Intersect(src.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: %v", ErrEmptyBox, box.Rect())
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: CropQuality}); err != nil {
		return nil, fmt.Errorf("encoding crop: %w", err)
	}
	return buf.Bytes(), nil
}
