// Package description contains objects to describe streams.
package description

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/bluenviron/rtspmedia/pkg/sdp"
)

var smartRegexp = regexp.MustCompile("^([0-9]+) (.*?)/90000")

// some cameras (e.g. Smart IPC) put the rtpmap content into the format list.
func replaceSmartPayloadType(payloadType string, md *sdp.Media) string {
	if payloadType == "smart/1/90000" {
		if attr, ok := md.Attribute("rtpmap"); ok {
			sm := smartRegexp.FindStringSubmatch(attr.Value())
			if sm != nil {
				return sm[1]
			}
		}
	}
	return payloadType
}

func isBackChannel(md *sdp.Media) bool {
	_, ok := md.Attribute("sendonly")
	return ok
}

func isAlphaNumeric(v string) bool {
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

// MediaType is the type of a media stream.
type MediaType string

// media types.
const (
	MediaTypeVideo       MediaType = "video"
	MediaTypeAudio       MediaType = "audio"
	MediaTypeApplication MediaType = "application"
)

// Media is a media stream.
// It contains one or more formats.
type Media struct {
	// Media type.
	Type MediaType

	// Media ID (optional).
	ID string

	// Whether this media is a back channel.
	IsBackChannel bool

	// Control attribute.
	Control string

	// Connection of the media, or of the session when the media has none (optional).
	Connection sdp.Connection

	// Formats contained into the media.
	Formats []*Format
}

// Unmarshal decodes the media from a parsed media section.
func (m *Media) Unmarshal(md *sdp.Media, conn sdp.Connection) error {
	m.Type = MediaType(md.Type)

	if attr, ok := md.Attribute("mid"); ok {
		m.ID = attr.Value()
		if !isAlphaNumeric(m.ID) {
			return fmt.Errorf("invalid mid: %v", m.ID)
		}
	}

	m.IsBackChannel = isBackChannel(md)
	m.Control = md.Control()
	m.Connection = conn

	rtpMaps := md.RTPMaps()
	fmtps := md.Fmtps()

	m.Formats = nil
	for _, payloadType := range md.Formats {
		payloadType = replaceSmartPayloadType(payloadType, md)

		tmp, err := strconv.ParseUint(payloadType, 10, 7)
		if err != nil {
			return fmt.Errorf("invalid payload type: %v", payloadType)
		}

		f := &Format{
			PayloadType: uint8(tmp),
		}

		var rtpMap *sdp.RTPMapAttribute
		for _, a := range rtpMaps {
			if a.PayloadType == f.PayloadType {
				rtpMap = a
				break
			}
		}

		var params map[string]string
		for _, a := range fmtps {
			if a.PayloadType == f.PayloadType {
				params = a.Parameters()
				break
			}
		}

		err = f.fill(string(m.Type), rtpMap, params)
		if err != nil {
			return err
		}

		m.Formats = append(m.Formats, f)
	}

	if m.Formats == nil {
		return fmt.Errorf("no formats found")
	}

	return nil
}

// URL returns the absolute URL of the media.
func (m Media) URL(contentBase *url.URL) (*url.URL, error) {
	if contentBase == nil {
		return nil, fmt.Errorf("Content-Base header not provided")
	}

	// no control attribute, use base URL
	if m.Control == "" || m.Control == "*" {
		return contentBase, nil
	}

	// control attribute contains an absolute path
	if strings.HasPrefix(m.Control, "rtsp://") ||
		strings.HasPrefix(m.Control, "rtsps://") {
		ur, err := url.Parse(m.Control)
		if err != nil {
			return nil, err
		}

		// copy host and credentials
		ur.Host = contentBase.Host
		ur.User = contentBase.User
		return ur, nil
	}

	// control attribute contains a relative control attribute
	// insert the control attribute at the end of the URL
	// if there's a query, insert it after the query
	// otherwise insert it after the path
	strURL := contentBase.String()
	if m.Control[0] != '?' && !strings.HasSuffix(strURL, "/") {
		strURL += "/"
	}

	return url.Parse(strURL + m.Control)
}

// FindFormat finds the first format with the given codec.
func (m Media) FindFormat(codec string) *Format {
	for _, f := range m.Formats {
		if strings.EqualFold(f.Codec, codec) {
			return f
		}
	}
	return nil
}
