package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

func parseUint64(field string, v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s `%v` cannot be encoded", errInvalidNumericValue, field, v)
	}
	return n, nil
}

func bandwidthsToPion(bws []Bandwidth) []psdp.Bandwidth {
	var ret []psdp.Bandwidth
	for _, bw := range bws {
		experimental := strings.HasPrefix(bw.Type, "X-")
		ret = append(ret, psdp.Bandwidth{
			Experimental: experimental,
			Type:         strings.TrimPrefix(bw.Type, "X-"),
			Bandwidth:    uint64(bw.Value),
		})
	}
	return ret
}

func attributesToPion(attrs []Attribute) []psdp.Attribute {
	var ret []psdp.Attribute
	for _, a := range attrs {
		ga, ok := a.(*GenericAttribute)
		switch {
		case ok && ga.Content == "" && ga.EmptyValue:
			// pion omits the colon of empty values
			ret = append(ret, psdp.NewPropertyAttribute(ga.Name+":"))

		case ok && ga.Content == "":
			ret = append(ret, psdp.NewPropertyAttribute(ga.Name))

		default:
			ret = append(ret, psdp.NewAttribute(a.Key(), a.Value()))
		}
	}
	return ret
}

// ToPion converts the descriptor into a pion/sdp session description.
// Session id and version must be numeric and fit into 64 bits.
// Only the first connection of each media is kept.
func (s *SessionDescription) ToPion() (*psdp.SessionDescription, error) {
	sessionID, err := parseUint64("session id", s.Origin.SessionID)
	if err != nil {
		return nil, err
	}

	sessionVersion, err := parseUint64("session version", s.Origin.SessionVersion)
	if err != nil {
		return nil, err
	}

	ps := &psdp.SessionDescription{
		Version: psdp.Version(s.Version),
		Origin: psdp.Origin{
			Username:       s.Origin.Username,
			SessionID:      sessionID,
			SessionVersion: sessionVersion,
			NetworkType:    s.Origin.NetworkType,
			AddressType:    s.Origin.AddressType,
			UnicastAddress: s.Origin.UnicastAddress,
		},
		SessionName: psdp.SessionName(s.SessionName),
		URI:         s.URI,
		Bandwidth:   bandwidthsToPion(s.Bandwidths),
		Attributes:  attributesToPion(s.Attributes),
	}

	if s.SessionInformation != nil {
		v := psdp.Information(*s.SessionInformation)
		ps.SessionInformation = &v
	}

	if s.EmailAddress != nil {
		v := psdp.EmailAddress(*s.EmailAddress)
		ps.EmailAddress = &v
	}

	if s.PhoneNumber != nil {
		v := psdp.PhoneNumber(*s.PhoneNumber)
		ps.PhoneNumber = &v
	}

	if s.Connection != nil {
		ps.ConnectionInformation = s.Connection.toPion()
	}

	for _, t := range s.Timings {
		start, err := parseUint64("start time", t.StartTime)
		if err != nil {
			return nil, err
		}

		stop, err := parseUint64("stop time", t.StopTime)
		if err != nil {
			return nil, err
		}

		ps.TimeDescriptions = append(ps.TimeDescriptions, psdp.TimeDescription{
			Timing: psdp.Timing{StartTime: start, StopTime: stop},
		})
	}

	for _, m := range s.Medias {
		md := &psdp.MediaDescription{
			MediaName: psdp.MediaName{
				Media:   m.Type,
				Port:    psdp.RangedPort{Value: m.Port},
				Protos:  strings.Split(m.Protocol, "/"),
				Formats: m.Formats,
			},
			Bandwidth:  bandwidthsToPion(m.Bandwidths),
			Attributes: attributesToPion(m.Attributes),
		}

		if m.NumberOfPorts > 1 {
			n := m.NumberOfPorts
			md.MediaName.Port.Range = &n
		}

		if m.Title != nil {
			v := psdp.Information(*m.Title)
			md.MediaTitle = &v
		}

		if len(m.Connections) != 0 {
			md.ConnectionInformation = m.Connections[0].toPion()
		}

		ps.MediaDescriptions = append(ps.MediaDescriptions, md)
	}

	return ps, nil
}

// Marshal encodes the descriptor.
func (s *SessionDescription) Marshal() ([]byte, error) {
	ps, err := s.ToPion()
	if err != nil {
		return nil, err
	}
	return ps.Marshal()
}
