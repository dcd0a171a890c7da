// Package wire implements the bancho binary packet codec: framed
// little-endian packets with osu-style string and int-list encoding.
package wire

import (
	"encoding/binary"
	"math"
)

// headerLen is the size of the packet header: id (u16) + padding (u8) +
// payload length (u32).
const headerLen = 7

var nullHeader = [headerLen]byte{}

// Writer builds a single outbound packet's payload, then finishes it by
// patching the 7-byte header in front of the accumulated bytes.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the header space pre-allocated.
func NewWriter() *Writer {
	w := &Writer{buf: make([]byte, headerLen, 32)}
	copy(w.buf, nullHeader[:])
	return w
}

func (w *Writer) WriteU8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) WriteI8(v int8) *Writer {
	return w.WriteU8(uint8(v))
}

func (w *Writer) WriteU16(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) WriteI16(v int16) *Writer {
	return w.WriteU16(uint16(v))
}

func (w *Writer) WriteU32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) WriteI32(v int32) *Writer {
	return w.WriteU32(uint32(v))
}

func (w *Writer) WriteU64(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) WriteI64(v int64) *Writer {
	return w.WriteU64(uint64(v))
}

func (w *Writer) WriteF32(v float32) *Writer {
	return w.WriteU32(math.Float32bits(v))
}

// WriteULEB128 writes num as an unsigned LEB128 varint.
func (w *Writer) WriteULEB128(num uint64) *Writer {
	if num == 0 {
		return w.WriteU8(0)
	}
	for num != 0 {
		b := byte(num & 0x7f)
		num >>= 7
		if num != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
	}
	return w
}

// WriteString writes an osu-style string: 0x00 if empty, else 0x0B
// followed by a uLEB128 byte length and the UTF-8 bytes.
func (w *Writer) WriteString(s string) *Writer {
	if s == "" {
		return w.WriteU8(0)
	}
	w.WriteU8(0x0B)
	w.WriteULEB128(uint64(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// WriteIntList writes a u16-prefixed list of i32s.
func (w *Writer) WriteIntList(vals []int32) *Writer {
	w.WriteU16(uint16(len(vals)))
	for _, v := range vals {
		w.WriteI32(v)
	}
	return w
}

// WriteRaw appends raw bytes verbatim (used for zero-copy relay, e.g.
// spectator frames).
func (w *Writer) WriteRaw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Finish patches the packet header in front of the accumulated payload
// and returns the complete frame.
func (w *Writer) Finish(packetID uint16) []byte {
	binary.LittleEndian.PutUint16(w.buf[0:2], packetID)
	w.buf[2] = 0
	binary.LittleEndian.PutUint32(w.buf[3:7], uint32(len(w.buf)-headerLen))
	return w.buf
}

// Simple returns a complete zero-length packet containing only the header.
func Simple(packetID uint16) []byte {
	return NewWriter().Finish(packetID)
}
