// Package rtpwire implements the RTP packet engine: 12-byte header
// parse/build and the payload-type registry used to dispatch to an
// AudioCodec adapter.
//
// Header marshaling is delegated to github.com/pion/rtp rather than
// hand-rolled big-endian field packing. This package's job is enforcing
// this engine's emission/validation rules on top of that codec, not
// reimplementing RFC 3550 byte layout.
package rtpwire

import (
	"fmt"

	"github.com/pion/rtp"
)

// Frame is a parsed RTP packet, as described in RtpFrame.
type Frame struct {
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	Marker         bool
	PayloadType    uint8
	Payload        []byte
}

// headerSize is the fixed RTP header size this engine emits and expects:
// version 2, no padding, no extension, zero CSRCs.
const headerSize = 12

// Parse validates and decodes an RTP packet from the wire. It rejects
// anything other than version 2 with zero CSRCs and no header extension —
// AES67 interop and the bespoke broadcast-codec RTP this engine speaks
// never need either, and accepting them would require reasoning about
// variable-length headers. Callers should count a non-nil error as a
// decode error and drop the packet.
func Parse(buf []byte) (Frame, error) {
	if len(buf) < headerSize {
		return Frame{}, fmt.Errorf("rtpwire: packet too short (%d bytes)", len(buf))
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return Frame{}, fmt.Errorf("rtpwire: unmarshal: %w", err)
	}
	if pkt.Version != 2 {
		return Frame{}, fmt.Errorf("rtpwire: unsupported RTP version %d", pkt.Version)
	}
	if len(pkt.CSRC) != 0 {
		return Frame{}, fmt.Errorf("rtpwire: CSRC present, unsupported")
	}
	if pkt.Extension {
		return Frame{}, fmt.Errorf("rtpwire: header extension present, unsupported")
	}

	return Frame{
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
		Marker:         pkt.Marker,
		PayloadType:    pkt.PayloadType,
		Payload:        pkt.Payload,
	}, nil
}

// Build encodes f as a wire-format RTP packet: fixed V=2,P=0,X=0,CC=0.
func Build(f Frame) ([]byte, error) {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         f.Marker,
			PayloadType:    f.PayloadType,
			SequenceNumber: f.SequenceNumber,
			Timestamp:      f.Timestamp,
			SSRC:           f.SSRC,
			CSRC:           nil,
		},
		Payload: f.Payload,
	}
	out, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rtpwire: marshal: %w", err)
	}
	return out, nil
}

// NextSequence returns the next sequence number after seq, wrapping at 65535.
func NextSequence(seq uint16) uint16 { return seq + 1 }

// NextTimestamp returns the next RTP timestamp after ts, advancing by
// samplesPerPacket and wrapping at 2^32.
func NextTimestamp(ts uint32, samplesPerPacket uint32) uint32 { return ts + samplesPerPacket }
