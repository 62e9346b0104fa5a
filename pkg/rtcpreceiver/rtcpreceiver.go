// Package rtcpreceiver contains a utility to associate RTP timestamps with
// absolute time, by using RTCP sender reports.
package rtcpreceiver

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/bluenviron/rtspmedia/pkg/ntp"
)

// Receiver associates RTP timestamps with absolute time.
// RTCP and RTP packets are usually read by different routines,
// therefore it can be used by multiple goroutines at once.
type Receiver struct {
	// clock rate of the RTP stream.
	ClockRate int

	mutex sync.RWMutex

	firstSenderReportReceived bool
	senderSSRC                uint32
	lastSenderReportTimeNTP   uint64
	lastSenderReportTimeRTP   uint32
}

// Init initializes the Receiver.
func (rr *Receiver) Init() error {
	if rr.ClockRate <= 0 {
		return fmt.Errorf("invalid clock rate: %d", rr.ClockRate)
	}
	return nil
}

// ProcessSenderReport extracts the needed data from a RTCP sender report.
func (rr *Receiver) ProcessSenderReport(sr *rtcp.SenderReport) {
	rr.mutex.Lock()
	defer rr.mutex.Unlock()

	rr.firstSenderReportReceived = true
	rr.senderSSRC = sr.SSRC
	rr.lastSenderReportTimeNTP = sr.NTPTime
	rr.lastSenderReportTimeRTP = sr.RTPTime
}

// ProcessPacket processes a generic RTCP packet. Packets other than sender reports are ignored.
func (rr *Receiver) ProcessPacket(pkt rtcp.Packet) {
	if sr, ok := pkt.(*rtcp.SenderReport); ok {
		rr.ProcessSenderReport(sr)
	}
}

// SenderSSRC returns the SSRC of the last sender report, if any.
func (rr *Receiver) SenderSSRC() (uint32, bool) {
	rr.mutex.RLock()
	defer rr.mutex.RUnlock()

	return rr.senderSSRC, rr.firstSenderReportReceived
}

// PacketNTP returns the absolute time of a RTP timestamp.
// It returns false when no sender report has been received yet.
func (rr *Receiver) PacketNTP(ts uint32) (time.Time, bool) {
	rr.mutex.RLock()
	defer rr.mutex.RUnlock()

	if !rr.firstSenderReportReceived {
		return time.Time{}, false
	}

	timeDiff := int32(ts - rr.lastSenderReportTimeRTP)
	timeDiffGo := (time.Duration(timeDiff) * time.Second) / time.Duration(rr.ClockRate)

	return ntp.Decode(rr.lastSenderReportTimeNTP).Add(timeDiffGo), true
}
