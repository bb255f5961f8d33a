package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// AlignUp rounds v up to the next multiple of alignment. Alignment must be a power of two.
//
// Parameters:
//   - v: the value to align
//   - alignment: the power-of-two alignment
//
// Returns:
//   - uint64: the smallest multiple of alignment that is >= v
func AlignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

// PutMat4 writes a column-major 4x4 matrix into dst as 16 little-endian float32 values.
// dst must be at least 64 bytes long.
//
// Parameters:
//   - dst: the destination byte slice
//   - m: the matrix to write
func PutMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// PutVec4 writes four float32 values into dst in little-endian order.
// dst must be at least 16 bytes long.
//
// Parameters:
//   - dst: the destination byte slice
//   - v: the vector to write
func PutVec4(dst []byte, v mgl32.Vec4) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

// ComposeTRS builds a local transform from translation, rotation and scale as T * R * S.
//
// Parameters:
//   - t: the translation
//   - r: the rotation quaternion
//   - s: the per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed column-major transform
func ComposeTRS(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(r.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// LookAtLH creates a left-handed view matrix looking from eye towards center.
//
// Parameters:
//   - eye: the viewer position
//   - center: the point being looked at
//   - up: the world up direction
//
// Returns:
//   - mgl32.Mat4: the left-handed view matrix
func LookAtLH(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	f := center.Sub(eye).Normalize()
	s := up.Cross(f).Normalize()
	u := f.Cross(s)

	m := mgl32.Ident4()
	m[0], m[4], m[8] = s[0], s[1], s[2]
	m[1], m[5], m[9] = u[0], u[1], u[2]
	m[2], m[6], m[10] = f[0], f[1], f[2]
	m[12] = -s.Dot(eye)
	m[13] = -u.Dot(eye)
	m[14] = -f.Dot(eye)
	return m
}

// PerspectiveLH creates a left-handed perspective projection with a [0, 1] depth range.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance
//   - far: far clipping plane distance
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func PerspectiveLH(fovY, aspect, near, far float32) mgl32.Mat4 {
	tanHalf := float32(math.Tan(float64(fovY) / 2))

	var m mgl32.Mat4
	m[0] = 1 / (aspect * tanHalf)
	m[5] = 1 / tanHalf
	m[10] = far / (far - near)
	m[11] = 1
	m[14] = -(far * near) / (far - near)
	return m
}
