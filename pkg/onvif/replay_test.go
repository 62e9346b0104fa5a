package onvif

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestReplayExtensionUnmarshal(t *testing.T) {
	var e ReplayExtension
	err := e.Unmarshal([]byte{
		0xd5, 0x16, 0x5f, 0xc3, 0x43, 0x00, 0x00, 0x00,
		0xa0, 0x07, 0x00, 0x00,
	})
	require.NoError(t, err)
	require.Equal(t, ReplayExtension{
		NTPTime:       time.Date(2013, 4, 15, 11, 15, 15, 261718750, time.UTC).Local(),
		CleanPoint:    true,
		Discontinuity: true,
		CSeq:          7,
	}, e)
}

func TestReplayExtensionTimestampOnly(t *testing.T) {
	var e ReplayExtension
	err := e.Unmarshal([]byte{0xd5, 0x16, 0x5f, 0xc3, 0x43, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, time.Date(2013, 4, 15, 11, 15, 15, 261718750, time.UTC).Local(), e.NTPTime)
	require.False(t, e.CleanPoint)

	err = e.Unmarshal([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestReplayExtensionMarshal(t *testing.T) {
	byts, err := ReplayExtension{
		NTPTime:      time.Date(2013, 4, 15, 11, 15, 15, 261718750, time.UTC),
		CleanPoint:   true,
		EndOfSection: true,
		Terminal:     true,
		CSeq:         3,
	}.Marshal()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0xd5, 0x16, 0x5f, 0xc3, 0x43, 0x00, 0x00, 0x00,
		0xd0, 0x03, 0x00, 0x00,
	}, byts)
}

func TestFromPacket(t *testing.T) {
	var pkt rtp.Packet
	err := pkt.Unmarshal([]byte{
		0x90, 0xe0, 0x00, 0x01, // V=2 X=1, M=1 PT=96, seq
		0x00, 0x00, 0x00, 0x64, // timestamp
		0x00, 0x00, 0x00, 0x01, // SSRC
		0xab, 0xac, 0x00, 0x03, // profile, length in words
		0xd5, 0x16, 0x5f, 0xc3, 0x43, 0x00, 0x00, 0x00,
		0x80, 0x01, 0x00, 0x00,
		0x05, 0x01, 0x02, // payload
	})
	require.NoError(t, err)

	ext, ok := FromPacket(&pkt)
	require.True(t, ok)
	require.Equal(t, time.Date(2013, 4, 15, 11, 15, 15, 261718750, time.UTC).Local(), ext.NTPTime)
	require.True(t, ext.CleanPoint)
	require.Equal(t, uint8(1), ext.CSeq)

	_, ok = FromPacket(&rtp.Packet{Payload: []byte{0x05}})
	require.False(t, ok)
}
