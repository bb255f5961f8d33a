package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-bindless/common"
)

// Common errors returned by the parser
var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidDataURI     = errors.New("invalid data URI")
	errOutOfBounds        = errors.New("index or range out of bounds")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	baseDir  string
	document *gltfDocument
}

// gltfParser loads a glTF JSON or GLB document together with its buffers and decodes accessor
// data into typed slices. Every index read from the document is bounds checked.
type gltfParser interface {
	// Parse loads and parses a glTF/GLB file from the given path.
	// The format is detected from the extension and the GLB magic number.
	//
	// Parameters:
	//   - path: path to the glTF or GLB file
	//
	// Returns:
	//   - error: error if parsing fails
	Parse(path string) error

	// ParseReader parses a glTF document from a reader. Relative URIs resolve against baseDir.
	//
	// Parameters:
	//   - r: reader containing glTF JSON or GLB data
	//   - isGLB: true if the data is in GLB format
	//   - baseDir: the directory relative URIs resolve against
	//
	// Returns:
	//   - error: error if parsing fails
	ParseReader(r io.Reader, isGLB bool, baseDir string) error

	// Document returns the parsed glTF document, or nil before a successful parse.
	//
	// Returns:
	//   - *gltfDocument: the parsed document or nil
	Document() *gltfDocument

	// ReadVec2 reads a float VEC2 accessor.
	//
	// Parameters:
	//   - accessor: the accessor index
	//
	// Returns:
	//   - [][2]float32: one element per accessor entry
	//   - error: error if the accessor is not VEC2 FLOAT or is out of bounds
	ReadVec2(accessor int) ([][2]float32, error)

	// ReadVec3 reads a float VEC3 accessor.
	//
	// Parameters:
	//   - accessor: the accessor index
	//
	// Returns:
	//   - [][3]float32: one element per accessor entry
	//   - error: error if the accessor is not VEC3 FLOAT or is out of bounds
	ReadVec3(accessor int) ([][3]float32, error)

	// ReadColor reads a COLOR_n accessor in any of the encodings glTF allows (VEC3 or VEC4 of
	// float, normalized unsigned byte or normalized unsigned short) and widens it to RGBA.
	//
	// Parameters:
	//   - accessor: the accessor index
	//
	// Returns:
	//   - [][4]float32: one RGBA color per accessor entry
	//   - error: error for unsupported encodings
	ReadColor(accessor int) ([][4]float32, error)

	// ReadIndices reads an unsigned byte, short or int SCALAR accessor as 32-bit indices.
	//
	// Parameters:
	//   - accessor: the accessor index
	//
	// Returns:
	//   - []uint32: the indices
	//   - error: error for unsupported component types
	ReadIndices(accessor int) ([]uint32, error)

	// ReadImage resolves the encoded bytes or file path of a document image.
	//
	// Parameters:
	//   - image: the image index
	//
	// Returns:
	//   - common.ImportedTexture: the still encoded image
	//   - error: error if the image source cannot be resolved
	ReadImage(image int) (common.ImportedTexture, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser.
//
// Returns:
//   - gltfParser: the parser
func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) Parse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	p.baseDir = filepath.Dir(path)

	isGLB := strings.EqualFold(filepath.Ext(path), ".glb") ||
		(len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic)
	return p.parse(data, isGLB)
}

func (p *gltfParserImpl) ParseReader(r io.Reader, isGLB bool, baseDir string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	p.baseDir = baseDir
	return p.parse(data, isGLB)
}

func (p *gltfParserImpl) parse(data []byte, isGLB bool) error {
	jsonData := data
	var binChunk []byte
	if isGLB {
		var err error
		if jsonData, binChunk, err = splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("%w: failed to parse glTF JSON: %w", ErrUnsupportedFormat, err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, errInvalidGLTFVersion)
	}
	if err := p.loadBuffers(&doc, binChunk); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}

	p.document = &doc
	return nil
}

// splitGLB validates the GLB header and returns its JSON and BIN chunks.
// Layout: 12-byte header, then chunks of [length uint32][type uint32][data].
func splitGLB(data []byte) ([]byte, []byte, error) {
	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read GLB header: %w", ErrUnsupportedFormat, err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, errInvalidGLBMagic)
	}
	if header.Version != gltfGLBVersion {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, errInvalidGLBVersion)
	}

	var jsonData, binData []byte
	for {
		var chunk gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunk.ChunkLength) > int64(r.Len()) {
			return nil, nil, fmt.Errorf("GLB chunk of %d bytes: %w", chunk.ChunkLength, errOutOfBounds)
		}
		body := make([]byte, chunk.ChunkLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, fmt.Errorf("failed to read chunk data: %w", err)
		}
		switch chunk.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = body
		case gltfGLBChunkBIN:
			binData = body
		}
	}

	if jsonData == nil {
		return nil, nil, errMissingJSONChunk
	}
	return jsonData, binData, nil
}

// loadBuffers fills Data of every buffer from the GLB BIN chunk, a data URI or an external file.
func (p *gltfParserImpl) loadBuffers(doc *gltfDocument, binChunk []byte) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		switch {
		case buf.URI == "" && i == 0 && binChunk != nil:
			buf.Data = binChunk
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			data, _, err := p.loadURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d holds %d of %d bytes: %w", i, len(buf.Data), buf.ByteLength, errOutOfBounds)
		}
	}
	return nil
}

// loadURI reads a base64 data URI or a file relative to the document.
// The returned string is the data URI media type, or empty for files.
func (p *gltfParserImpl) loadURI(uri string) ([]byte, string, error) {
	if strings.HasPrefix(uri, "data:") {
		return decodeDataURI(uri)
	}
	data, err := os.ReadFile(filepath.Join(p.baseDir, filepath.FromSlash(uri)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to load %q: %w", uri, err)
	}
	return data, "", nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<data>.
func decodeDataURI(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: no comma found", errInvalidDataURI)
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: unsupported encoding %q", errInvalidDataURI, header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errInvalidDataURI, err)
	}
	return data, mimeType, nil
}

// bufferView returns the bytes covered by a buffer view.
func (p *gltfParserImpl) bufferView(index int) ([]byte, *gltfBufferView, error) {
	doc := p.document
	if index < 0 || index >= len(doc.BufferViews) {
		return nil, nil, fmt.Errorf("bufferView %d: %w", index, errOutOfBounds)
	}
	bv := &doc.BufferViews[index]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, nil, fmt.Errorf("buffer %d: %w", bv.Buffer, errOutOfBounds)
	}
	data := doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if bv.ByteOffset < 0 || end > len(data) {
		return nil, nil, fmt.Errorf("bufferView %d [%d, %d) of a %d byte buffer: %w", index, bv.ByteOffset, end, len(data), errOutOfBounds)
	}
	return data[bv.ByteOffset:end], bv, nil
}

// accessorElements returns the tightly packed bytes of an accessor, one element per entry.
// Strided views are de-interleaved.
func (p *gltfParserImpl) accessorElements(index int) (*gltfAccessor, []byte, int, error) {
	if p.document == nil {
		return nil, nil, 0, errors.New("no document loaded")
	}
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, nil, 0, fmt.Errorf("accessor %d: %w", index, errOutOfBounds)
	}
	acc := &p.document.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d is sparse", ErrUnsupportedFormat, index)
	}

	elementSize := gltfComponentTypeSize(acc.ComponentType) * gltfAccessorTypeComponentCount(acc.Type)
	if elementSize == 0 {
		return nil, nil, 0, fmt.Errorf("%w: accessor %d has type %s/%d", ErrUnsupportedFormat, index, acc.Type, acc.ComponentType)
	}
	out := make([]byte, acc.Count*elementSize)
	if acc.BufferView == nil {
		// glTF defines view-less accessors as all zeros
		return acc, out, elementSize, nil
	}

	view, bv, err := p.bufferView(*acc.BufferView)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("accessor %d: %w", index, err)
	}
	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	if acc.Count > 0 {
		last := acc.ByteOffset + (acc.Count-1)*stride + elementSize
		if acc.ByteOffset < 0 || last > len(view) {
			return nil, nil, 0, fmt.Errorf("accessor %d needs %d bytes of a %d byte view: %w", index, last, len(view), errOutOfBounds)
		}
	}
	for i := 0; i < acc.Count; i++ {
		src := acc.ByteOffset + i*stride
		copy(out[i*elementSize:(i+1)*elementSize], view[src:src+elementSize])
	}
	return acc, out, elementSize, nil
}

// readFloats decodes a float accessor of the given type into a flat component slice.
func (p *gltfParserImpl) readFloats(index int, accType string) ([]float32, error) {
	acc, data, _, err := p.accessorElements(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != accType || acc.ComponentType != gltfComponentTypeFloat {
		return nil, fmt.Errorf("accessor %d is %s/%d, want %s FLOAT", index, acc.Type, acc.ComponentType, accType)
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func (p *gltfParserImpl) ReadVec2(accessor int) ([][2]float32, error) {
	f, err := p.readFloats(accessor, gltfAccessorTypeVec2)
	if err != nil {
		return nil, err
	}
	out := make([][2]float32, len(f)/2)
	for i := range out {
		out[i] = [2]float32{f[i*2], f[i*2+1]}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadVec3(accessor int) ([][3]float32, error) {
	f, err := p.readFloats(accessor, gltfAccessorTypeVec3)
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, len(f)/3)
	for i := range out {
		out[i] = [3]float32{f[i*3], f[i*3+1], f[i*3+2]}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadColor(accessor int) ([][4]float32, error) {
	acc, data, _, err := p.accessorElements(accessor)
	if err != nil {
		return nil, err
	}
	n := gltfAccessorTypeComponentCount(acc.Type)
	if acc.Type != gltfAccessorTypeVec3 && acc.Type != gltfAccessorTypeVec4 {
		return nil, fmt.Errorf("%w: color accessor of type %s", ErrUnsupportedFormat, acc.Type)
	}

	var component func(i int) float32
	switch acc.ComponentType {
	case gltfComponentTypeFloat:
		component = func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])) }
	case gltfComponentTypeUnsignedByte:
		component = func(i int) float32 { return float32(data[i]) / 255 }
	case gltfComponentTypeUnsignedShort:
		component = func(i int) float32 { return float32(binary.LittleEndian.Uint16(data[i*2:])) / 65535 }
	default:
		return nil, fmt.Errorf("%w: color component type %d", ErrUnsupportedFormat, acc.ComponentType)
	}

	out := make([][4]float32, acc.Count)
	for i := range out {
		out[i][3] = 1
		for c := 0; c < n; c++ {
			out[i][c] = component(i*n + c)
		}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadIndices(accessor int) ([]uint32, error) {
	acc, data, _, err := p.accessorElements(accessor)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor %d is %s, want SCALAR", accessor, acc.Type)
	}

	out := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range out {
			out[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("%w: index component type %d", ErrUnsupportedFormat, acc.ComponentType)
	}
	return out, nil
}

func (p *gltfParserImpl) ReadImage(image int) (common.ImportedTexture, error) {
	doc := p.document
	if image < 0 || image >= len(doc.Images) {
		return common.ImportedTexture{}, fmt.Errorf("image %d: %w", image, errOutOfBounds)
	}
	img := &doc.Images[image]
	tex := common.ImportedTexture{Name: common.Coalesce(img.Name, img.URI, fmt.Sprintf("image_%d", image)), MimeType: img.MimeType}

	switch {
	case img.BufferView != nil:
		view, _, err := p.bufferView(*img.BufferView)
		if err != nil {
			return tex, err
		}
		tex.Data = append([]byte(nil), view...)
	case strings.HasPrefix(img.URI, "data:"):
		data, mimeType, err := decodeDataURI(img.URI)
		if err != nil {
			return tex, err
		}
		tex.Data = data
		tex.MimeType = common.Coalesce(tex.MimeType, mimeType)
	case img.URI != "":
		// external images are read by the decoder so missing files surface as decode errors
		tex.Path = filepath.Join(p.baseDir, filepath.FromSlash(img.URI))
	default:
		return tex, fmt.Errorf("image %d has neither a URI nor a bufferView", image)
	}
	return tex, nil
}

// --- Component Type Helpers ---

// gltfComponentTypeSize returns the byte size of a glTF component type, or 0 if unknown.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components in a glTF accessor type, or 0 if unknown.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4, gltfAccessorTypeMat2:
		return 4
	case gltfAccessorTypeMat3:
		return 9
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
