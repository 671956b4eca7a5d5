package wire

import (
	"bytes"
	"testing"
)

func TestSeqLessWrapAround(t *testing.T) {
	if !SeqLess(254, 1) {
		t.Error("expected 254 < 1 across the wrap")
	}
	if SeqLess(1, 254) {
		t.Error("expected 1 not < 254 across the wrap (forward distance > 128)")
	}
	if SeqLess(5, 5) {
		t.Error("a sequence is never less than itself")
	}
}

func TestBuildAckBitfield(t *testing.T) {
	received := map[uint8]bool{17: true, 18: true, 19: true}
	bitfield := BuildAckBitfield(27, func(s uint8) bool { return received[s] })
	if bitfield != (1<<7 | 1<<8 | 1<<9) {
		t.Errorf("bitfield = %#x, want %#x", bitfield, 1<<7|1<<8|1<<9)
	}
}

func TestAckCoversSelfAndWindow(t *testing.T) {
	if !AckCovers(27, 27, 0) {
		t.Error("a sequence equal to remote_ack is always covered")
	}
	if !AckCovers(26, 27, 1) {
		t.Error("expected seq 26 covered by bit 0")
	}
	if AckCovers(26, 27, 0) {
		t.Error("expected seq 26 not covered when its bit is clear")
	}
	if AckCovers(0, 40, 0) {
		t.Error("expected a sequence outside the 32-wide window to never be covered")
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	tag := [4]byte{1, 2, 3, 4}
	h := Header{ProtocolTag: tag, ConnectionID: 0xDEADBEEF, LocalSeq: 7, RemoteAck: 9, AckBitfield: 0x0F}
	data := h.Encode()

	got, ok := DecodeHeader(data, tag)
	if !ok {
		t.Fatal("expected DecodeHeader to accept a packet with the matching protocol tag")
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderRejectsWrongTagOrShortPacket(t *testing.T) {
	tag := [4]byte{1, 2, 3, 4}
	h := Header{ProtocolTag: [4]byte{9, 9, 9, 9}, ConnectionID: 1}
	if _, ok := DecodeHeader(h.Encode(), tag); ok {
		t.Error("expected a mismatched protocol tag to be rejected")
	}
	if _, ok := DecodeHeader([]byte{1, 2, 3}, tag); ok {
		t.Error("expected a too-short packet to be rejected")
	}
}

func TestCloseMarkerRoundTrip(t *testing.T) {
	tag := [4]byte{1, 2, 3, 4}
	data := EncodeCloseMarker(tag, 42)

	h, ok := DecodeHeader(data, tag)
	if !ok {
		t.Fatal("expected the close marker header to decode")
	}
	if !IsCloseMarker(h, data[HeaderSize:]) {
		t.Error("expected IsCloseMarker to recognize its own output")
	}
}

func TestMessageEncodeDecode(t *testing.T) {
	msgs := []Message{
		{Kind: KindInstant, Payload: []byte("Foo")},
		{Kind: KindOrdered, OrderChannel: 0, OrderSeq: 1, Payload: []byte("Hello")},
	}
	var buf []byte
	for _, m := range msgs {
		buf = m.Encode(buf)
	}

	got := DecodeMessages(buf)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Kind != KindInstant || !bytes.Equal(got[0].Payload, []byte("Foo")) {
		t.Errorf("message 0 = %+v", got[0])
	}
	if got[1].OrderSeq != 1 || !bytes.Equal(got[1].Payload, []byte("Hello")) {
		t.Errorf("message 1 = %+v", got[1])
	}
}

func TestDecodeMessagesDropsTruncatedTrailer(t *testing.T) {
	buf := []byte{0, 0, 0, 3, 'F', 'o', 'o', 1, 0, 0, 10, 'o', 'n', 'l', 'y'}
	got := DecodeMessages(buf)
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1 (truncated trailer discarded)", len(got))
	}
}

func BenchmarkBuildAckBitfield(b *testing.B) {
	received := map[uint8]bool{17: true, 18: true, 19: true}
	fn := func(s uint8) bool { return received[s] }
	for i := 0; i < b.N; i++ {
		BuildAckBitfield(27, fn)
	}
}
