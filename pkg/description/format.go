package description

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/bluenviron/rtspmedia/pkg/rtph264"
	"github.com/bluenviron/rtspmedia/pkg/sdp"
)

type staticFormat struct {
	codec        string
	clockRate    int
	channelCount int
}

// formats with a static payload type, RFC 3551.
var staticFormats = map[uint8]staticFormat{
	0:  {"PCMU", 8000, 1},
	8:  {"PCMA", 8000, 1},
	9:  {"G722", 8000, 1},
	14: {"MPA", 90000, 0},
	26: {"JPEG", 90000, 0},
	32: {"MPV", 90000, 0},
	33: {"MP2T", 90000, 0},
}

// Format is a RTP format of a media.
type Format struct {
	// payload type.
	PayloadType uint8

	// encoding name, as written in the rtpmap attribute.
	Codec string

	// clock rate of RTP timestamps.
	ClockRate int

	// channel count of audio formats.
	ChannelCount int

	// format-specific parameters, from the fmtp attribute.
	Params map[string]string
}

func (f *Format) fill(mediaType string, rtpMap *sdp.RTPMapAttribute, params map[string]string) error {
	f.Params = params

	if rtpMap == nil {
		if sf, ok := staticFormats[f.PayloadType]; ok {
			f.Codec = sf.codec
			f.ClockRate = sf.clockRate
			f.ChannelCount = sf.channelCount
		}
		return nil
	}

	f.Codec = rtpMap.EncodingName
	f.ClockRate = rtpMap.ClockRate

	if mediaType == string(MediaTypeAudio) {
		f.ChannelCount = 1

		if rtpMap.EncodingParameters != "" {
			tmp, err := strconv.ParseUint(rtpMap.EncodingParameters, 10, 31)
			if err != nil || tmp == 0 {
				return fmt.Errorf("invalid channel count: %v", rtpMap.EncodingParameters)
			}
			f.ChannelCount = int(tmp)
		}
	}

	return nil
}

// IsH264 checks whether the format is H264.
func (f *Format) IsH264() bool {
	return strings.EqualFold(f.Codec, "H264")
}

// H264Params are the parameters of a H264 format.
// Specification: https://datatracker.ietf.org/doc/html/rfc6184#section-8.1
type H264Params struct {
	PacketizationMode int

	// profile_idc, profile-iop and level_idc (optional).
	ProfileLevelID []byte

	// parameters sent out of band (optional).
	SPS []byte
	PPS []byte

	// picture size decoded from SPS (optional).
	Width  int
	Height int
}

// H264 decodes the H264 parameters of the format.
func (f *Format) H264() (*H264Params, error) {
	if !f.IsH264() {
		return nil, fmt.Errorf("format is not H264 (%s)", f.Codec)
	}

	p := &H264Params{}

	for key, val := range f.Params {
		switch key {
		case "sprop-parameter-sets":
			tmp := strings.Split(val, ",")
			if len(tmp) < 2 {
				continue
			}

			sps, err := base64.StdEncoding.DecodeString(tmp[0])
			if err != nil {
				return nil, fmt.Errorf("invalid sprop-parameter-sets (%v)", val)
			}

			// some cameras ship parameters with Annex-B prefix
			sps = bytes.TrimPrefix(sps, []byte{0, 0, 0, 1})

			pps, err := base64.StdEncoding.DecodeString(tmp[1])
			if err != nil {
				return nil, fmt.Errorf("invalid sprop-parameter-sets (%v)", val)
			}

			pps = bytes.TrimPrefix(pps, []byte{0, 0, 0, 1})

			var spsp h264.SPS
			err = spsp.Unmarshal(sps)
			if err != nil {
				continue
			}

			p.SPS = sps
			p.PPS = pps
			p.Width = spsp.Width()
			p.Height = spsp.Height()

		case "packetization-mode":
			tmp, err := strconv.ParseUint(val, 10, 31)
			if err != nil {
				return nil, fmt.Errorf("invalid packetization-mode (%v)", val)
			}
			p.PacketizationMode = int(tmp)

		case "profile-level-id":
			tmp, err := hex.DecodeString(val)
			if err != nil || len(tmp) != 3 {
				return nil, fmt.Errorf("invalid profile-level-id (%v)", val)
			}
			p.ProfileLevelID = tmp
		}
	}

	return p, nil
}

// CreateDecoder creates a decoder able to decode the content of the format.
func (f *Format) CreateDecoder() (*rtph264.Decoder, error) {
	p, err := f.H264()
	if err != nil {
		return nil, err
	}

	d := &rtph264.Decoder{
		PacketizationMode: p.PacketizationMode,
	}
	err = d.Init()
	if err != nil {
		return nil, err
	}

	return d, nil
}

// CreateEncoder creates an encoder able to encode the content of the format.
func (f *Format) CreateEncoder() (*rtph264.Encoder, error) {
	p, err := f.H264()
	if err != nil {
		return nil, err
	}

	e := &rtph264.Encoder{
		PayloadType:       f.PayloadType,
		PacketizationMode: p.PacketizationMode,
	}
	err = e.Init()
	if err != nil {
		return nil, err
	}

	return e, nil
}
