package rtpwire

import (
	"bytes"
	"testing"
)

func TestBuildParseRoundTrip(t *testing.T) {
	f := Frame{
		SequenceNumber: 1234,
		Timestamp:      90000,
		SSRC:           0xdeadbeef,
		Marker:         true,
		PayloadType:    uint8(PTPCML24),
		Payload:        []byte{1, 2, 3, 4, 5, 6},
	}

	buf, err := Build(f)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(buf) != headerSize+len(f.Payload) {
		t.Fatalf("built packet length = %d, want %d", len(buf), headerSize+len(f.Payload))
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.SequenceNumber != f.SequenceNumber || got.Timestamp != f.Timestamp ||
		got.SSRC != f.SSRC || got.Marker != f.Marker || got.PayloadType != f.PayloadType {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: got %v, want %v", got.Payload, f.Payload)
	}
}

func TestParseRejectsShortPacket(t *testing.T) {
	if _, err := Parse(make([]byte, 8)); err == nil {
		t.Fatal("expected error for packet shorter than fixed header")
	}
}

func TestSequenceWrapsAt65535(t *testing.T) {
	if got := NextSequence(65535); got != 0 {
		t.Fatalf("NextSequence(65535) = %d, want 0", got)
	}
}

func TestTimestampWrapsAt32Bits(t *testing.T) {
	if got := NextTimestamp(0xFFFFFFFF, 48); got != 47 {
		t.Fatalf("NextTimestamp wraparound = %d, want 47", got)
	}
}

func TestRegistryLookup(t *testing.T) {
	cases := []struct {
		pt      PayloadType
		wantErr bool
		codec   Codec
	}{
		{PTPCMU, false, CodecPCMU},
		{PTG722, false, CodecG722},
		{PTMP2, false, CodecMP2},
		{PTPCML16, false, CodecL16},
		{PTPCML24, false, CodecL24},
		{PTPCML20, false, CodecL20},
		{PTAACADTS, false, CodecAACADTS},
		{PTAACLATM, true, CodecUnknown},
		{PayloadType(55), true, CodecUnknown},
	}
	for _, c := range cases {
		codec, err := Lookup(c.pt)
		if (err != nil) != c.wantErr {
			t.Errorf("Lookup(%d): err=%v, wantErr=%v", c.pt, err, c.wantErr)
		}
		if !c.wantErr && codec != c.codec {
			t.Errorf("Lookup(%d) codec = %v, want %v", c.pt, codec, c.codec)
		}
	}
}

func TestAACADTSIsReceiveOnly(t *testing.T) {
	if !IsReceiveOnly(PTAACADTS) {
		t.Fatal("PT 99 (AAC-ADTS) must be registered receive-only")
	}
	if IsReceiveOnly(PTPCML16) {
		t.Fatal("PT 21 (PCM-L16) must not be receive-only")
	}
}

func TestMPEGAudioHeaderRoundTrip(t *testing.T) {
	frame := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	payload := PrependMPEGAudioHeader(frame)
	if len(payload) != mpegAudioHeaderSize+len(frame) {
		t.Fatalf("payload length = %d, want %d", len(payload), mpegAudioHeaderSize+len(frame))
	}

	got, err := StripMPEGAudioHeader(payload)
	if err != nil {
		t.Fatalf("StripMPEGAudioHeader: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("stripped frame = %v, want %v", got, frame)
	}
}

func TestStripMPEGAudioHeaderRejectsShortPayload(t *testing.T) {
	if _, err := StripMPEGAudioHeader([]byte{1, 2}); err == nil {
		t.Fatal("expected error for payload shorter than RFC 2250 header")
	}
}
