package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size limits, mirroring a length-prefixed wire framing: a 4-byte
// big-endian length prefix followed by a msgpack-encoded payload.
const (
	maxFrameSize     = 16 * 1024 * 1024
	lengthPrefixSize = 4
	maxPayloadSize   = maxFrameSize - lengthPrefixSize
)

// frameKind discriminates journal frame payloads.
type frameKind string

const (
	kindAdd frameKind = "add"
	kindAck frameKind = "ack"
)

// wireFrame is the on-disk shape of one journal record.
type wireFrame struct {
	Kind      frameKind `msgpack:"kind"`
	ID        uint64    `msgpack:"id"`
	Data      []byte    `msgpack:"data,omitempty"`
	AddedAt   int64     `msgpack:"added_at,omitempty"`
	ExpiresAt int64     `msgpack:"expires_at,omitempty"`
}

// encodeFrame msgpack-encodes f and prefixes it with its big-endian length.
func encodeFrame(f wireFrame) ([]byte, error) {
	payload, err := msgpack.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("journal: encode frame: %w", err)
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("journal: %w: payload %d bytes", ErrTooLarge, len(payload))
	}
	buf := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(payload)))
	copy(buf[lengthPrefixSize:], payload)
	return buf, nil
}

// frameReader decodes a stream of length-prefixed msgpack frames.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &frameReader{r: br}
}

// next reads and decodes the next frame. Returns io.EOF when the stream
// is exhausted, including when it ends in a partial trailing frame; an
// oversized length prefix or an undecodable payload yields an error
// wrapping ErrCorrupt.
func (fr *frameReader) next() (wireFrame, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return wireFrame{}, io.EOF
		}
		// A partial length prefix at EOF means the last write was
		// interrupted (process crash mid-fsync); treat the remainder
		// as absent rather than corrupt, the safer replay choice.
		return wireFrame{}, io.EOF
	}

	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxPayloadSize {
		return wireFrame{}, fmt.Errorf("%w: frame size %d exceeds limit", ErrCorrupt, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		// Partial payload: same crash-tolerant treatment as above.
		return wireFrame{}, io.EOF
	}

	var f wireFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return wireFrame{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return f, nil
}
