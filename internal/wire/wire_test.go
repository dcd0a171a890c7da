package wire

import (
	"bytes"
	"testing"
)

func TestWriteStringEmpty(t *testing.T) {
	got := NewWriter().WriteString("").Finish(1)
	if got[7] != 0x00 {
		t.Fatalf("empty string should encode to 0x00, got %#x", got[7])
	}
}

func TestWriteStringRoundTrip(t *testing.T) {
	w := NewWriter().WriteString("peppy").Finish(1)
	r := NewReader(w[7:])
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if s != "peppy" {
		t.Fatalf("got %q, want %q", s, "peppy")
	}
}

func TestULEB128RoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 127, 128, 300, 16384, 1 << 20} {
		w := NewWriter()
		w.WriteULEB128(n)
		r := NewReader(w.buf[7:])
		got, err := r.ReadULEB128()
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: got %d", n, got)
		}
	}
}

func TestIntListRoundTrip(t *testing.T) {
	vals := []int32{1, -2, 3, 400}
	w := NewWriter().WriteIntList(vals).Finish(1)
	r := NewReader(w[7:])
	got, err := r.ReadIntList()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(vals) {
		t.Fatalf("len mismatch: %d vs %d", len(got), len(vals))
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("index %d: got %d want %d", i, got[i], vals[i])
		}
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	payload := NewWriter().WriteI32(-1).Finish(ServerUserID)
	if len(payload) != 7+4 {
		t.Fatalf("unexpected length %d", len(payload))
	}
	f, n, err := ReadFrame(payload)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("consumed %d, want %d", n, len(payload))
	}
	if f.ID != ServerUserID {
		t.Fatalf("id = %d, want %d", f.ID, ServerUserID)
	}
	r := NewReader(f.Payload)
	v, err := r.ReadI32()
	if err != nil || v != -1 {
		t.Fatalf("payload decode: %v %d", err, v)
	}
}

func TestReadAllFramesMultiple(t *testing.T) {
	a := Simple(ClientLogout)
	b := NewWriter().WriteString("hi").Finish(ClientSendPublicMessage)
	buf := append(append([]byte{}, a...), b...)
	frames, err := ReadAllFrames(buf)
	if err != nil {
		t.Fatalf("ReadAllFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames", len(frames))
	}
	if frames[0].ID != ClientLogout || frames[1].ID != ClientSendPublicMessage {
		t.Fatalf("unexpected ids: %v %v", frames[0].ID, frames[1].ID)
	}
}

func TestReadAllFramesTruncated(t *testing.T) {
	full := NewWriter().WriteString("hi").Finish(1)
	_, err := ReadAllFrames(full[:len(full)-1])
	if err != ErrTruncated {
		t.Fatalf("want ErrTruncated, got %v", err)
	}
}

func TestWriteRawPassthrough(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, 100)
	w := NewWriter().WriteRaw(raw).Finish(ServerSpectateFrames)
	if !bytes.Equal(w[7:], raw) {
		t.Fatalf("raw bytes not preserved")
	}
}
