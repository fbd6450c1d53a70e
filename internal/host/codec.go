package host

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// Frame size limits. Browsers cap messages from a native host at 1 MB and
// messages to a native host at 64 MB, so the connector enforces the same
// asymmetric limits on its side of the pipe.
const (
	MaxInboundSize  = 1 * 1024 * 1024
	MaxOutboundSize = 64 * 1024 * 1024
)

// frameHeaderLength is the fixed size of a frame header: 4 bytes payload
// length, little-endian uint32.
const frameHeaderLength = 4

// WriteFrame writes one length-prefixed frame to w. The frame format is
// [4 bytes payload length, little-endian uint32] [JSON payload].
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxOutboundSize {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(payload), MaxOutboundSize)
	}
	var header [frameHeaderLength]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. Returns io.EOF
// untouched when the stream ends cleanly between frames so read loops can
// distinguish shutdown from corruption.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	payloadLength := binary.LittleEndian.Uint32(header[:])
	if payloadLength == 0 {
		return nil, fmt.Errorf("zero-length frame")
	}
	if payloadLength > MaxInboundSize {
		return nil, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, MaxInboundSize)
	}
	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// Encode serializes a message for the wire
func Encode(v interface{}) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// Decode deserializes a wire payload into v
func Decode(data []byte, v interface{}) error {
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
