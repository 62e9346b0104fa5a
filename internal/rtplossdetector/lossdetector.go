// Package rtplossdetector implements an algorithm that detects lost packets.
package rtplossdetector

import (
	"github.com/pion/rtp"
)

// LossDetector detects lost packets.
type LossDetector struct {
	initialized    bool
	expectedSeqNum uint16
}

// Process processes a RTP packet.
// It returns the number of lost packets.
// Sequence numbers that go backwards (duplicates, reordering) are not counted.
func (r *LossDetector) Process(pkt *rtp.Packet) uint64 {
	if !r.initialized {
		r.initialized = true
		r.expectedSeqNum = pkt.SequenceNumber + 1
		return 0
	}

	diff := pkt.SequenceNumber - r.expectedSeqNum
	r.expectedSeqNum = pkt.SequenceNumber + 1

	if diff >= 0x8000 {
		return 0
	}

	return uint64(diff)
}
