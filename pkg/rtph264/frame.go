package rtph264

import (
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/bluenviron/rtspmedia/pkg/bufpool"
)

// Frame is a group of NALUs that share the same RTP timestamp.
// Each NALU is prefixed by a 4-byte start code and is backed by a pool buffer.
type Frame struct {
	// NALUs, in arrival order.
	NALUs [][]byte

	// RTP timestamp of the packet that closed the frame.
	RTPTimestamp uint32

	// absolute time of the frame, or zero if unknown.
	NTP time.Time

	buffers []*bufpool.Buffer
}

// Release returns the frame buffers to their pool.
// NALUs must not be used after calling Release.
func (f *Frame) Release() {
	for _, buf := range f.buffers {
		buf.Release()
	}
	f.buffers = nil
	f.NALUs = nil
}

// AnnexB returns the NALUs as a single Annex-B byte stream.
// The returned slice is a copy and remains valid after Release.
func (f *Frame) AnnexB() []byte {
	n := 0
	for _, nalu := range f.NALUs {
		n += len(nalu)
	}

	buf := make([]byte, 0, n)
	for _, nalu := range f.NALUs {
		buf = append(buf, nalu...)
	}
	return buf
}

// AccessUnit returns the NALUs without their start codes.
// Returned NALUs share memory with the frame.
func (f *Frame) AccessUnit() [][]byte {
	au := make([][]byte, len(f.NALUs))
	for i, nalu := range f.NALUs {
		au[i] = nalu[len(startCode):]
	}
	return au
}

// IsRandomAccess checks whether the frame contains an IDR NALU.
func (f *Frame) IsRandomAccess() bool {
	for _, nalu := range f.NALUs {
		if len(nalu) > len(startCode) &&
			h264.NALUType(nalu[len(startCode)]&0x1F) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}
