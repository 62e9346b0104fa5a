package rtph264

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/pion/rtp"

	"github.com/bluenviron/rtspmedia/pkg/onvif"
)

const (
	rtpVersion            = 2
	defaultPayloadMaxSize = 1460 // 1500 (UDP MTU) - 20 (IP header) - 8 (UDP header) - 12 (RTP header)
	fuHeaderSize          = 2
)

func randUint32() (uint32, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// stapaSize returns the size of a STAP-A payload containing nalus.
func stapaSize(nalus [][]byte) int {
	n := 1
	for _, nalu := range nalus {
		n += 2 + len(nalu)
	}
	return n
}

// Encoder is a RTP/H264 encoder.
// Specification: https://datatracker.ietf.org/doc/html/rfc6184
type Encoder struct {
	// payload type of packets.
	PayloadType uint8

	// SSRC of packets (optional).
	// It defaults to a random value.
	SSRC *uint32

	// initial sequence number of packets (optional).
	// It defaults to a random value.
	InitialSequenceNumber *uint16

	// maximum size of packet payloads (optional).
	// It defaults to 1460.
	PayloadMaxSize int

	// indicates the packetization mode.
	PacketizationMode int

	sequenceNumber uint16
}

// Init initializes the encoder.
func (e *Encoder) Init() error {
	if e.PacketizationMode >= 2 {
		return fmt.Errorf("PacketizationMode >= 2 is not supported")
	}

	if e.SSRC == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		e.SSRC = &v
	}

	if e.InitialSequenceNumber == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		v2 := uint16(v)
		e.InitialSequenceNumber = &v2
	}

	if e.PayloadMaxSize == 0 {
		e.PayloadMaxSize = defaultPayloadMaxSize
	}

	if e.PayloadMaxSize <= fuHeaderSize {
		return fmt.Errorf("invalid PayloadMaxSize: %d", e.PayloadMaxSize)
	}

	e.sequenceNumber = *e.InitialSequenceNumber
	return nil
}

// Encode encodes an access unit into RTP/H264 packets.
// NALUs can be provided with or without a leading start code.
// The last packet has the marker bit set.
func (e *Encoder) Encode(au [][]byte, timestamp uint32) ([]*rtp.Packet, error) {
	if len(au) == 0 {
		return nil, fmt.Errorf("access unit is empty")
	}

	var pkts []*rtp.Packet
	var batch [][]byte

	flush := func(marker bool) {
		switch {
		case len(batch) == 0:
		case len(batch) > 1:
			pkts = append(pkts, e.packet(e.stapa(batch), timestamp, marker))
		case len(batch[0]) <= e.PayloadMaxSize:
			pkts = append(pkts, e.packet(batch[0], timestamp, marker))
		default:
			pkts = append(pkts, e.fragment(batch[0], timestamp, marker)...)
		}
		batch = nil
	}

	for _, nalu := range au {
		nalu = bytes.TrimPrefix(nalu, startCode)
		if len(nalu) == 0 {
			return nil, fmt.Errorf("NALU is empty")
		}

		// single-NALU mode does not allow aggregation
		if e.PacketizationMode == 0 || stapaSize(append(batch, nalu)) > e.PayloadMaxSize {
			flush(false)
		}

		batch = append(batch, nalu)
	}

	flush(true)

	return pkts, nil
}

// EncodeFrame encodes a Frame, attaching its absolute time
// through the ONVIF replay extension when it is set.
// The clean point flag of the extension is set on random access frames only.
func (e *Encoder) EncodeFrame(fr *Frame) ([]*rtp.Packet, error) {
	pkts, err := e.Encode(fr.AccessUnit(), fr.RTPTimestamp)
	if err != nil {
		return nil, err
	}

	if !fr.NTP.IsZero() {
		err = setReplayExtension(pkts[0], fr.NTP, fr.IsRandomAccess())
		if err != nil {
			return nil, err
		}
	}

	return pkts, nil
}

func setReplayExtension(pkt *rtp.Packet, t time.Time, cleanPoint bool) error {
	ext := onvif.ReplayExtension{
		NTPTime:    t,
		CleanPoint: cleanPoint,
	}
	buf, err := ext.Marshal()
	if err != nil {
		return err
	}

	pkt.Header.Extension = true
	pkt.Header.ExtensionProfile = onvif.ReplayExtensionProfile
	return pkt.Header.SetExtension(0, buf)
}

func (e *Encoder) packet(payload []byte, timestamp uint32, marker bool) *rtp.Packet {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        rtpVersion,
			PayloadType:    e.PayloadType,
			SequenceNumber: e.sequenceNumber,
			Timestamp:      timestamp,
			SSRC:           *e.SSRC,
			Marker:         marker,
		},
		Payload: payload,
	}
	e.sequenceNumber++
	return pkt
}

func (e *Encoder) fragment(nalu []byte, timestamp uint32, marker bool) []*rtp.Packet {
	// FU-B is only allowed in interleaved mode, which is not supported
	avail := e.PayloadMaxSize - fuHeaderSize
	indicator := (nalu[0] & 0xE0) | uint8(h264.NALUTypeFUA)
	typ := nalu[0] & 0x1F
	body := nalu[1:]

	var pkts []*rtp.Packet

	for first := true; first || len(body) > 0; first = false {
		n := min(avail, len(body))
		last := n == len(body)

		fuHeader := typ
		if first {
			fuHeader |= 0x80
		}
		if last {
			fuHeader |= 0x40
		}

		payload := make([]byte, fuHeaderSize+n)
		payload[0] = indicator
		payload[1] = fuHeader
		copy(payload[fuHeaderSize:], body[:n])
		body = body[n:]

		pkts = append(pkts, e.packet(payload, timestamp, last && marker))
	}

	return pkts
}

func (e *Encoder) stapa(nalus [][]byte) []byte {
	payload := make([]byte, 1, stapaSize(nalus))

	// F is the OR of all F bits, NRI the maximum of all NRIs
	var f, nri uint8
	for _, nalu := range nalus {
		f |= nalu[0] & 0x80
		nri = max(nri, nalu[0]&0x60)
	}
	payload[0] = f | nri | uint8(h264.NALUTypeSTAPA)

	for _, nalu := range nalus {
		payload = append(payload, uint8(len(nalu)>>8), uint8(len(nalu)))
		payload = append(payload, nalu...)
	}

	return payload
}
