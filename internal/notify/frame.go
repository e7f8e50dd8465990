// Package notify serializes change events into the fixed-width frames
// described in spec.md §4.2 and fans them out to subscriber sinks.
package notify

// deletedSentinel is written in place of a value when a key is removed,
// per spec.md §4.2 and §6.
const deletedSentinel = "DELETED"

// EncodeFrame builds one fixed-width notification frame: key padded
// right with NULs to maxKey+1 bytes, followed by value (or the DELETED
// sentinel) padded right with NULs to maxVal+1 bytes. The +1 mirrors the
// source's NUL-terminated C strings and keeps the receiver able to do a
// single blocking read of a known size.
func EncodeFrame(key, value []byte, maxKey, maxVal int) []byte {
	frame := make([]byte, maxKey+1+maxVal+1)
	copy(frame[:maxKey+1], key)
	copy(frame[maxKey+1:], value)
	return frame
}

// EncodeDeleted builds a frame carrying the DELETED sentinel as value.
func EncodeDeleted(key []byte, maxKey, maxVal int) []byte {
	return EncodeFrame(key, []byte(deletedSentinel), maxKey, maxVal)
}

// FrameSize returns the total size of one notification frame.
func FrameSize(maxKey, maxVal int) int {
	return maxKey + 1 + maxVal + 1
}
