// Package onvif contains the ONVIF RTP header extension used to carry absolute timestamps.
package onvif

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pion/rtp"

	"github.com/bluenviron/rtspmedia/pkg/ntp"
)

// ReplayExtensionProfile is the RTP header extension profile of the replay extension.
const ReplayExtensionProfile = 0xABAC

const replayExtensionSize = 12

// ReplayExtension is the ONVIF replay header extension.
// Specification: ONVIF Streaming Specification, section 6.3
type ReplayExtension struct {
	// absolute time of the first byte of the packet.
	NTPTime time.Time

	// packet belongs to a random access point.
	CleanPoint bool

	// end of a contiguous section of recording.
	EndOfSection bool

	// packet follows a gap in the recording.
	Discontinuity bool

	// last packet of the track.
	Terminal bool

	// low-order byte of the RTSP CSeq of the request that started the replay.
	CSeq uint8
}

// Unmarshal decodes a ReplayExtension from the extension payload,
// without the 4-byte profile/length preamble.
// The flags field is optional, since some devices send the timestamp only.
func (e *ReplayExtension) Unmarshal(buf []byte) error {
	if len(buf) < 8 {
		return fmt.Errorf("replay extension is too short (%d bytes)", len(buf))
	}

	e.NTPTime = ntp.Decode(binary.BigEndian.Uint64(buf))

	if len(buf) >= 10 {
		flags := buf[8]
		e.CleanPoint = (flags & 0x80) != 0
		e.EndOfSection = (flags & 0x40) != 0
		e.Discontinuity = (flags & 0x20) != 0
		e.Terminal = (flags & 0x10) != 0
		e.CSeq = buf[9]
	}

	return nil
}

// Marshal encodes a ReplayExtension.
func (e ReplayExtension) Marshal() ([]byte, error) {
	buf := make([]byte, replayExtensionSize)
	binary.BigEndian.PutUint64(buf, ntp.Encode(e.NTPTime))

	if e.CleanPoint {
		buf[8] |= 0x80
	}
	if e.EndOfSection {
		buf[8] |= 0x40
	}
	if e.Discontinuity {
		buf[8] |= 0x20
	}
	if e.Terminal {
		buf[8] |= 0x10
	}
	buf[9] = e.CSeq

	return buf, nil
}

// FromPacket extracts the replay extension of a RTP packet, if present and valid.
func FromPacket(pkt *rtp.Packet) (*ReplayExtension, bool) {
	if !pkt.Extension || pkt.ExtensionProfile != ReplayExtensionProfile {
		return nil, false
	}

	// extensions with a RFC3550 profile are exposed with ID zero
	payload := pkt.GetExtension(0)
	if payload == nil {
		return nil, false
	}

	var e ReplayExtension
	err := e.Unmarshal(payload)
	if err != nil {
		return nil, false
	}

	return &e, true
}
