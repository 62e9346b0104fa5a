// Package rtph264 contains a RTP/H264 decoder and encoder.
package rtph264

import (
	"errors"
	"fmt"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/bluenviron/rtspmedia/internal/rtplossdetector"
	"github.com/bluenviron/rtspmedia/pkg/bufpool"
	"github.com/bluenviron/rtspmedia/pkg/onvif"
	"github.com/bluenviron/rtspmedia/pkg/rtcpreceiver"
)

// ErrMorePacketsNeeded is returned when more packets are needed to complete a frame.
var ErrMorePacketsNeeded = errors.New("need more packets")

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// Stats are the counters of a Decoder.
type Stats struct {
	Single    uint64
	STAPA     uint64
	STAPB     uint64
	MTAP16    uint64
	MTAP24    uint64
	FUA       uint64
	FUB       uint64
	Unknown   uint64
	Anomalies uint64

	// packets missing from the sequence.
	Lost uint64
}

// Decoder is a RTP/H264 decoder.
// It turns RTP packets into frames made of NALUs prefixed by a start code.
// Packets must be provided in sequence order, by a single routine.
// Specification: https://datatracker.ietf.org/doc/html/rfc6184
type Decoder struct {
	// indicates the packetization mode.
	PacketizationMode int

	// pool used to allocate NALUs (optional).
	// It defaults to a pool owned by the decoder.
	Pool *bufpool.Pool

	// clock used to compute absolute timestamps when packets
	// do not carry them (optional).
	SenderClock *rtcpreceiver.Receiver

	// logger (optional).
	// It defaults to the logrus standard logger.
	Log logrus.FieldLogger

	log          logrus.FieldLogger
	stats        Stats
	lossDetector rtplossdetector.LossDetector

	fragments     []byte
	fragmentsOpen bool

	frameNALUs   [][]byte
	frameBuffers []*bufpool.Buffer
	frameSize    int
	ntp          time.Time
}

// Init initializes the decoder.
func (d *Decoder) Init() error {
	if d.PacketizationMode >= 2 {
		return fmt.Errorf("PacketizationMode >= 2 is not supported")
	}

	if d.Pool == nil {
		d.Pool = &bufpool.Pool{
			MaxBufferSize: len(startCode) + h264.MaxAccessUnitSize,
		}
		err := d.Pool.Init()
		if err != nil {
			return err
		}
	}

	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	d.log = log.WithField("decoder", uuid.New().String())

	return nil
}

// Stats returns the counters of the decoder.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Reset discards the frame under construction and any open fragment,
// releasing their buffers.
func (d *Decoder) Reset() {
	d.resetFragments()
	d.resetFrame()
}

func (d *Decoder) resetFragments() {
	d.fragments = d.fragments[:0]
	d.fragmentsOpen = false
}

func (d *Decoder) resetFrame() {
	for _, buf := range d.frameBuffers {
		buf.Release()
	}
	d.frameNALUs = nil
	d.frameBuffers = nil
	d.frameSize = 0
}

func (d *Decoder) anomaly(pkt *rtp.Packet, msg string) {
	d.stats.Anomalies++
	d.log.WithFields(logrus.Fields{
		"seq":       pkt.SequenceNumber,
		"timestamp": pkt.Timestamp,
	}).Warn(msg)
}

// addNALU copies header and body into a pool buffer, after a start code,
// and appends the result to the frame.
func (d *Decoder) addNALU(pkt *rtp.Packet, header []byte, body []byte) error {
	size := len(header) + len(body)

	if len(d.frameNALUs) >= h264.MaxNALUsPerAccessUnit {
		d.anomaly(pkt, fmt.Sprintf("NALU count exceeds maximum allowed (%d), discarding NALU",
			h264.MaxNALUsPerAccessUnit))
		return nil
	}

	if (d.frameSize + size) > h264.MaxAccessUnitSize {
		d.anomaly(pkt, fmt.Sprintf("access unit size (%d) is too big, maximum is %d, discarding NALU",
			d.frameSize+size, h264.MaxAccessUnitSize))
		return nil
	}

	buf, err := d.Pool.Rent(len(startCode) + size)
	if err != nil {
		return err
	}

	b := buf.Bytes()
	n := copy(b, startCode)
	n += copy(b[n:], header)
	copy(b[n:], body)

	d.frameNALUs = append(d.frameNALUs, b)
	d.frameBuffers = append(d.frameBuffers, buf)
	d.frameSize += size

	return nil
}

func (d *Decoder) decodeSTAPA(pkt *rtp.Packet) error {
	payload := pkt.Payload[1:]

	for len(payload) >= 2 {
		size := int(uint16(payload[0])<<8 | uint16(payload[1]))
		payload = payload[2:]

		if size == 0 {
			// discard padding
			if isAllZero(payload) {
				return nil
			}
			continue
		}

		if size > len(payload) {
			d.anomaly(pkt, fmt.Sprintf("invalid STAP-A packet (NALU size %d exceeds remaining %d bytes)",
				size, len(payload)))
			return nil
		}

		err := d.addNALU(pkt, nil, payload[:size])
		if err != nil {
			return err
		}

		payload = payload[size:]
	}

	if len(payload) != 0 {
		d.anomaly(pkt, "invalid STAP-A packet (trailing bytes)")
	}

	return nil
}

func (d *Decoder) closeFragments(pkt *rtp.Packet) error {
	err := d.addNALU(pkt, d.fragments[:1], d.fragments[1:])
	d.resetFragments()
	return err
}

func (d *Decoder) decodeFUA(pkt *rtp.Packet, lost uint64) error {
	if len(pkt.Payload) < 2 {
		d.resetFragments()
		d.anomaly(pkt, "invalid FU-A packet (invalid size)")
		return nil
	}

	start := pkt.Payload[1] >> 7
	end := (pkt.Payload[1] >> 6) & 0x01

	if start == 1 {
		if d.fragmentsOpen {
			d.anomaly(pkt, "received a starting FU-A fragment before the end of the previous one, "+
				"discarding previous fragments")
		}

		// forbidden bit and NRI come from the FU indicator, type from the FU header
		header := (pkt.Payload[0] & 0xE0) | (pkt.Payload[1] & 0x1F)

		d.fragments = append(d.fragments[:0], header)
		d.fragments = append(d.fragments, pkt.Payload[2:]...)
		d.fragmentsOpen = true

		// RFC 6184 forbids start and end bits in the same FU header, but some
		// vendors (e.g. CostarHD) emit them for sufficiently small P-frames.
		if end == 1 {
			return d.closeFragments(pkt)
		}

		return nil
	}

	if !d.fragmentsOpen {
		d.anomaly(pkt, "received a non-starting FU-A fragment without any previous starting fragment")
		return nil
	}

	// repeated or reordered sequence numbers are tolerated, only a forward gap breaks the NALU
	if lost > 0 {
		d.resetFragments()
		d.anomaly(pkt, "discarding fragmented NALU since a RTP packet is missing")
		return nil
	}

	if (len(d.fragments) + len(pkt.Payload) - 2) > h264.MaxAccessUnitSize {
		d.resetFragments()
		d.anomaly(pkt, fmt.Sprintf("NALU size is too big, maximum is %d", h264.MaxAccessUnitSize))
		return nil
	}

	d.fragments = append(d.fragments, pkt.Payload[2:]...)

	if end == 1 {
		return d.closeFragments(pkt)
	}

	return nil
}

func (d *Decoder) decodeNALUs(pkt *rtp.Packet, lost uint64) error {
	if len(pkt.Payload) < 1 {
		d.resetFragments()
		d.anomaly(pkt, "payload is too short")
		return nil
	}

	typ := h264.NALUType(pkt.Payload[0] & 0x1F)

	if typ != h264.NALUTypeFUA && d.fragmentsOpen {
		d.resetFragments()
		d.anomaly(pkt, "fragmented NALU interrupted by another packet, discarding fragments")
	}

	switch typ {
	case h264.NALUTypeFUA:
		d.stats.FUA++
		return d.decodeFUA(pkt, lost)

	case h264.NALUTypeSTAPA:
		d.stats.STAPA++
		return d.decodeSTAPA(pkt)

	case h264.NALUTypeSTAPB:
		d.stats.STAPB++

	case h264.NALUTypeMTAP16:
		d.stats.MTAP16++

	case h264.NALUTypeMTAP24:
		d.stats.MTAP24++

	case h264.NALUTypeFUB:
		d.stats.FUB++

	default:
		if typ >= 1 && typ <= 23 {
			d.stats.Single++
			return d.addNALU(pkt, nil, pkt.Payload)
		}

		d.stats.Unknown++
		d.log.WithField("type", uint8(typ)).Debug("unknown NALU type, discarding packet")
		return nil
	}

	d.log.WithField("type", uint8(typ)).Warn("packet type not supported, discarding packet")
	return nil
}

func (d *Decoder) updateNTP(pkt *rtp.Packet) {
	if ext, ok := onvif.FromPacket(pkt); ok {
		d.ntp = ext.NTPTime
		return
	}

	if d.SenderClock != nil {
		if v, ok := d.SenderClock.PacketNTP(pkt.Timestamp); ok {
			d.ntp = v
		}
	}
}

// Decode decodes a frame from a RTP packet.
// It returns ErrMorePacketsNeeded until a packet with the marker bit is received.
// Invalid or unsupported packets are discarded, counted and logged;
// an error is returned only when the buffer pool cannot provide a buffer,
// in which case the frame under construction is discarded.
// The returned frame must be released by the caller.
func (d *Decoder) Decode(pkt *rtp.Packet) (*Frame, error) {
	d.updateNTP(pkt)
	lost := d.lossDetector.Process(pkt)
	d.stats.Lost += lost

	err := d.decodeNALUs(pkt, lost)
	if err != nil {
		d.Reset()
		return nil, err
	}

	if !pkt.Marker {
		return nil, ErrMorePacketsNeeded
	}

	if d.fragmentsOpen {
		d.resetFragments()
		d.anomaly(pkt, "frame ended inside a fragmented NALU, discarding fragments")
	}

	fr := &Frame{
		NALUs:        d.frameNALUs,
		RTPTimestamp: pkt.Timestamp,
		NTP:          d.ntp,
		buffers:      d.frameBuffers,
	}

	// buffers are now owned by the frame
	d.frameNALUs = nil
	d.frameBuffers = nil
	d.frameSize = 0

	d.log.WithFields(logrus.Fields{
		"nalus":     len(fr.NALUs),
		"single":    d.stats.Single,
		"stapa":     d.stats.STAPA,
		"stapb":     d.stats.STAPB,
		"mtap16":    d.stats.MTAP16,
		"mtap24":    d.stats.MTAP24,
		"fua":       d.stats.FUA,
		"fub":       d.stats.FUB,
		"unknown":   d.stats.Unknown,
		"anomalies": d.stats.Anomalies,
		"lost":      d.stats.Lost,
	}).Debug("frame decoded")

	return fr, nil
}
