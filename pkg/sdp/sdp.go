// Package sdp contains a session descriptor (SDP) reader with strict and loose modes.
package sdp

import (
	"net/url"
	"strings"
)

// OriginPlaceholder is the value given by loose reading to origin fields
// that are missing from the descriptor.
const OriginPlaceholder = "-"

// SessionDescription is a session descriptor.
// Specification: https://datatracker.ietf.org/doc/html/rfc4566
type SessionDescription struct {
	// protocol version. It is always zero.
	Version int

	Origin Origin

	SessionName string

	// free-text session information (optional).
	SessionInformation *string

	// descriptive URL (optional).
	URI *url.URL

	// contact email (optional).
	EmailAddress *string

	// contact phone number (optional).
	PhoneNumber *string

	// session-level connection (optional).
	// It can be provided by each media instead.
	Connection Connection

	Bandwidths []Bandwidth
	Timings    []Timing
	Attributes []Attribute
	Medias     []*Media
}

// Origin is the originator of a session descriptor.
type Origin struct {
	Username string

	// session identifier. It is kept as text since it can exceed 64 bits.
	SessionID string

	// session version. It is kept as text since it can exceed 64 bits.
	SessionVersion string

	NetworkType    string
	AddressType    string
	UnicastAddress string
}

// Timing is the start and stop time of a session.
// Values are NTP seconds, kept as text.
type Timing struct {
	StartTime string
	StopTime  string
}

// Bandwidth is a bandwidth line.
type Bandwidth struct {
	// type, for instance AS or CT.
	Type string

	// value, in kilobits per second for AS and CT.
	Value int
}

// Media is a media description.
type Media struct {
	// media type, for instance video, audio or application.
	Type string

	Port int

	// number of contiguous ports. It defaults to 1.
	NumberOfPorts int

	// transport protocol, for instance RTP/AVP.
	Protocol string

	// format identifiers, usually RTP payload types.
	Formats []string

	// media title (optional).
	Title *string

	// connections. They override or supplement the session-level one.
	Connections []Connection

	Bandwidths []Bandwidth
	Attributes []Attribute
}

func findAttribute(attrs []Attribute, key string) (Attribute, bool) {
	for _, a := range attrs {
		if strings.EqualFold(a.Key(), key) {
			return a, true
		}
	}
	return nil, false
}

// Attribute returns the first session-level attribute with given key.
func (s *SessionDescription) Attribute(key string) (Attribute, bool) {
	return findAttribute(s.Attributes, key)
}

// Attribute returns the first attribute of the media with given key.
func (m *Media) Attribute(key string) (Attribute, bool) {
	return findAttribute(m.Attributes, key)
}

// Control returns the value of the control attribute.
func (m *Media) Control() string {
	a, ok := m.Attribute("control")
	if !ok {
		return ""
	}
	return a.Value()
}

// RTPMaps returns all the rtpmap attributes of the media.
func (m *Media) RTPMaps() []*RTPMapAttribute {
	var ret []*RTPMapAttribute
	for _, a := range m.Attributes {
		if rm, ok := a.(*RTPMapAttribute); ok {
			ret = append(ret, rm)
		}
	}
	return ret
}

// Fmtps returns all the fmtp attributes of the media.
func (m *Media) Fmtps() []*FmtpAttribute {
	var ret []*FmtpAttribute
	for _, a := range m.Attributes {
		if f, ok := a.(*FmtpAttribute); ok {
			ret = append(ret, f)
		}
	}
	return ret
}

// MediaConnection returns the connection that applies to a media:
// the first media-level connection, or the session-level one.
func (s *SessionDescription) MediaConnection(m *Media) Connection {
	if len(m.Connections) != 0 {
		return m.Connections[0]
	}
	return s.Connection
}
