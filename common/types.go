// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyTexture is returned by Decode when a texture has neither embedded bytes nor a path.
var ErrEmptyTexture = errors.New("texture has neither data nor path")

// ImportedTexture represents image data extracted from a model file.
// For embedded images (GLB buffer views, data URIs), the Data field contains raw encoded bytes.
// For external images, the Path field contains the resolved file path.
type ImportedTexture struct {
	// Name is an identifier for this image, usually the glTF image name or URI.
	Name string

	// Path is the file path for external images (empty for embedded).
	Path string

	// Data contains raw encoded image bytes for embedded images.
	Data []byte

	// MimeType indicates the image format (e.g., "image/png", "image/jpeg").
	MimeType string

	// Width is the decoded width in pixels (populated after Decode).
	Width int

	// Height is the decoded height in pixels (populated after Decode).
	Height int
}

// Decode decodes the texture to tightly packed RGBA8 pixel data.
// Uses either embedded Data bytes or loads from Path on disk.
// PNG, JPEG, BMP, TIFF and WebP are supported. Images whose width or height exceeds
// maxSize are downscaled to fit, preserving aspect ratio; a maxSize of 0 disables fitting.
//
// Parameters:
//   - maxSize: the largest allowed width or height in pixels, or 0 for no limit
//
// Returns:
//   - []byte: raw RGBA pixel data (4 bytes per pixel, row-major order)
//   - uint32: texture width in pixels
//   - uint32: texture height in pixels
//   - error: error if the image is missing or its format cannot be decoded
func (t *ImportedTexture) Decode(maxSize int) ([]byte, uint32, uint32, error) {
	if t == nil {
		return nil, 0, 0, fmt.Errorf("texture is nil")
	}

	var img image.Image
	var err error

	if len(t.Data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode embedded image %q: %w", t.Name, err)
		}
	} else if t.Path != "" {
		file, fileErr := os.Open(t.Path)
		if fileErr != nil {
			return nil, 0, 0, fmt.Errorf("failed to open texture file %s: %w", t.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to decode texture file %s: %w", t.Path, err)
		}
	} else {
		return nil, 0, 0, ErrEmptyTexture
	}

	bounds := img.Bounds()
	if maxSize > 0 && (bounds.Dx() > maxSize || bounds.Dy() > maxSize) {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Box)
		bounds = img.Bounds()
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	t.Width = bounds.Dx()
	t.Height = bounds.Dy()

	return rgba.Pix, uint32(t.Width), uint32(t.Height), nil
}

// VertexSize is the size in bytes of one Vertex as laid out in a vertex buffer.
const VertexSize = 80

// Vertex is the interleaved vertex layout shared by every mesh. Each attribute after Color is
// padded to 16 bytes so the struct can be copied into a vertex buffer as-is.
type Vertex struct {
	Color    [4]float32
	Position [3]float32
	_        float32
	Normal   [3]float32
	_        float32
	UV       [2]float32
	_        [2]float32
	Tangent  [3]float32
	_        float32
}

// NewVertex returns a vertex at position with the default attributes: a white color, a +Y normal,
// a +X tangent and zero texture coordinates.
//
// Parameters:
//   - position: the object-space position
//
// Returns:
//   - Vertex: the vertex
func NewVertex(position [3]float32) Vertex {
	return Vertex{
		Color:    [4]float32{1, 1, 1, 1},
		Position: position,
		Normal:   [3]float32{0, 1, 0},
		Tangent:  [3]float32{1, 0, 0},
	}
}
