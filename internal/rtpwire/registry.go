package rtpwire

import "fmt"

// PayloadType is the 7-bit RTP payload-type field, interpreted against the
// registry below.
type PayloadType uint8

// Registered payload types. 96 is the AES67 dynamic default; its actual
// sample format is conveyed out of band (stream configuration), not on the
// wire.
const (
	PTPCMU       PayloadType = 0
	PTG722       PayloadType = 9
	PTL16Stereo  PayloadType = 10 // legacy, not used for new streams
	PTMP2        PayloadType = 14
	PTPCML16     PayloadType = 21
	PTPCML24     PayloadType = 22
	PTDynamicPCM PayloadType = 96 // AES67 default
	PTAACADTS    PayloadType = 99 // receive-only
	PTPCML20     PayloadType = 116
	PTAACLATM    PayloadType = 122 // explicitly unsupported
)

// Codec names a payload type's media encoding, independent of which RTP
// payload-type number carries it on a given stream (96 is dynamic).
type Codec int

const (
	CodecUnknown Codec = iota
	CodecPCMU
	CodecG722
	CodecL16
	CodecL20
	CodecL24
	CodecMP2
	CodecAACADTS
	CodecAACLATM
	CodecOpus
	CodecFLAC
)

// entry describes one payload type's fixed properties. ReceiveOnly types
// are never selected for transmit encoding.
type entry struct {
	codec       Codec
	name        string
	unsupported bool
	receiveOnly bool
}

var registry = map[PayloadType]entry{
	PTPCMU:       {codec: CodecPCMU, name: "PCMU"},
	PTG722:       {codec: CodecG722, name: "G.722"},
	PTL16Stereo:  {codec: CodecL16, name: "L16-stereo-legacy"},
	PTMP2:        {codec: CodecMP2, name: "MP2"},
	PTPCML16:     {codec: CodecL16, name: "PCM-L16"},
	PTPCML24:     {codec: CodecL24, name: "PCM-L24"},
	PTDynamicPCM: {codec: CodecUnknown, name: "dynamic-PCM"},
	PTAACADTS:    {codec: CodecAACADTS, name: "AAC-ADTS", receiveOnly: true},
	PTPCML20:     {codec: CodecL20, name: "PCM-L20"},
	PTAACLATM:    {codec: CodecAACLATM, name: "AAC-LATM", unsupported: true},
}

// ErrUnsupportedPayloadType is returned for payload types the registry
// marks unsupported (PT 122, AAC-LATM) or that carry no registry entry at
// all.
var ErrUnsupportedPayloadType = fmt.Errorf("rtpwire: unsupported payload type")

// Lookup returns the codec a payload type carries, and whether it is
// usable at all. A dynamic type (96) resolves its codec from the stream's
// out-of-band format configuration, not from this table — callers must
// supply it separately; Lookup reports CodecUnknown for it without error.
func Lookup(pt PayloadType) (Codec, error) {
	e, ok := registry[pt]
	if !ok {
		return CodecUnknown, ErrUnsupportedPayloadType
	}
	if e.unsupported {
		return CodecUnknown, ErrUnsupportedPayloadType
	}
	return e.codec, nil
}

// IsReceiveOnly reports whether pt is registered as receive-only (PT 99,
// AAC-ADTS): a stream must never be configured to transmit it.
func IsReceiveOnly(pt PayloadType) bool {
	e, ok := registry[pt]
	return ok && e.receiveOnly
}

// Name returns the registry's display name for pt, or "unknown" if pt has
// no entry.
func Name(pt PayloadType) string {
	if e, ok := registry[pt]; ok {
		return e.name
	}
	return "unknown"
}

// mpegAudioHeaderSize is the RFC 2250 MBZ|Frag-offset prefix every MP2
// (PT 14) payload carries ahead of the MPEG-Audio frame itself.
const mpegAudioHeaderSize = 4

// StripMPEGAudioHeader removes the 4-byte RFC 2250 header from an MP2
// payload, returning the bare MPEG-Audio frame bytes.
func StripMPEGAudioHeader(payload []byte) ([]byte, error) {
	if len(payload) < mpegAudioHeaderSize {
		return nil, fmt.Errorf("rtpwire: MP2 payload too short for RFC 2250 header (%d bytes)", len(payload))
	}
	return payload[mpegAudioHeaderSize:], nil
}

// PrependMPEGAudioHeader adds a zeroed RFC 2250 MBZ|Frag-offset header
// ahead of an MPEG-Audio frame for transmit. Fragmentation across packets
// is not implemented, so Frag-offset is always 0.
func PrependMPEGAudioHeader(frame []byte) []byte {
	out := make([]byte, mpegAudioHeaderSize+len(frame))
	copy(out[mpegAudioHeaderSize:], frame)
	return out
}
