// marshal.go - binary wire format for PathMeta, shared by store and tests.
//
// Adapted from the teacher's encdec.go (fixed-width big-endian encoders)
// and info_marshal.go (versioned marshal/unmarshal of a metadata struct).

package nefaxer

import (
	"encoding/binary"
	"fmt"
)

const metaMarshalVersion byte = 1

func enc64[T ~int64 | ~uint64](b []byte, n T) []byte {
	binary.BigEndian.PutUint64(b, uint64(n))
	return b[8:]
}

func dec64[T ~int64 | ~uint64](b []byte) ([]byte, T) {
	n := binary.BigEndian.Uint64(b[:8])
	return b[8:], T(n)
}

func encbytes(b []byte, s []byte) []byte {
	binary.BigEndian.PutUint32(b, uint32(len(s)))
	b = b[4:]
	copy(b, s)
	return b[len(s):]
}

func decbytes(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("unmarshal: bytes: buf len: %w", ErrTooSmall)
	}
	n := int(binary.BigEndian.Uint32(b))
	b = b[4:]
	if n > len(b) {
		return nil, nil, fmt.Errorf("unmarshal: bytes: buf: %w", ErrTooSmall)
	}
	if n == 0 {
		return b, nil, nil
	}
	return b[n:], b[:n], nil
}

// ErrTooSmall is returned when a marshaled buffer is shorter than the
// encoding it claims to hold.
var ErrTooSmall = fmt.Errorf("nefaxer: buffer is not big enough")

// MarshalSize returns the number of bytes MarshalTo will write for m.
func (m PathMeta) MarshalSize() int {
	// version(1) + mtime(8) + size(8) + hash-len(4) + hash bytes
	return 1 + 8 + 8 + 4 + len(m.Hash)
}

// MarshalTo marshals m into b, which must be at least m.MarshalSize() bytes.
func (m PathMeta) MarshalTo(b []byte) (int, error) {
	sz := m.MarshalSize()
	if len(b) < sz {
		return 0, fmt.Errorf("marshal: pathmeta: %w", ErrTooSmall)
	}
	orig := b
	b[0] = metaMarshalVersion
	b = b[1:]
	b = enc64(b, m.MtimeNS)
	b = enc64(b, int64(m.Size))
	b = encbytes(b, m.Hash)
	return len(orig) - len(b), nil
}

// Marshal marshals m into a freshly allocated, correctly sized buffer.
func (m PathMeta) Marshal() []byte {
	b := make([]byte, m.MarshalSize())
	_, _ = m.MarshalTo(b)
	return b
}

// UnmarshalPathMeta decodes a PathMeta previously produced by Marshal.
func UnmarshalPathMeta(b []byte) (PathMeta, error) {
	var m PathMeta
	if len(b) < 1 {
		return m, fmt.Errorf("unmarshal: pathmeta: %w", ErrTooSmall)
	}
	ver := b[0]
	b = b[1:]
	if ver != metaMarshalVersion {
		return m, fmt.Errorf("unmarshal: pathmeta: unsupported version %d", ver)
	}
	if len(b) < 16 {
		return m, fmt.Errorf("unmarshal: pathmeta: %w", ErrTooSmall)
	}
	var mtime, size int64
	b, mtime = dec64[int64](b)
	b, size = dec64[int64](b)
	_, hash, err := decbytes(b)
	if err != nil {
		return m, err
	}
	m.MtimeNS = mtime
	m.Size = uint64(size)
	if hash != nil {
		m.Hash = append([]byte(nil), hash...)
	}
	return m, nil
}
