package wire

import "encoding/binary"

// PutUint32 writes a big-endian 32-bit integer into buffer at start,
// mirroring the teacher's (buffer, offset)-addressed manual packing
// (internal/uapi/marshal.go), but big-endian per §4.1.
func PutUint32(buffer []byte, start int, value uint32) {
	binary.BigEndian.PutUint32(buffer[start:start+4], value)
}

// Uint32 reads a big-endian 32-bit integer from buffer at start.
func Uint32(buffer []byte, start int) uint32 {
	return binary.BigEndian.Uint32(buffer[start : start+4])
}

// PutUint64 writes a big-endian 64-bit integer into buffer at start.
func PutUint64(buffer []byte, start int, value uint64) {
	binary.BigEndian.PutUint64(buffer[start:start+8], value)
}

// Uint64 reads a big-endian 64-bit integer from buffer at start.
func Uint64(buffer []byte, start int) uint64 {
	return binary.BigEndian.Uint64(buffer[start : start+8])
}

// CheckCastToUint32 reports whether value fits in a uint32 without
// truncation, guarding downcasts at length-prefix boundaries (§4.1).
func CheckCastToUint32(value uint64) bool {
	return value <= 0xFFFFFFFF
}

// RespondMalformed clears a response's payload and marks it MALFORMED.
// Dispatch arms call this and return without invoking the VP handler (§4.6).
func RespondMalformed(res *Response) {
	res.Data = nil
	res.Status = StatusMalformed
}
