package sdp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bluenviron/rtspmedia/pkg/liberrors"
)

type decoder struct {
	strict   bool
	registry *AttributeRegistry
	log      logrus.FieldLogger
	sd       *SessionDescription

	lineNum  int
	lineText string

	versionReceived     bool
	originReceived      bool
	sessionNameReceived bool
	timingReceived      bool
}

func (d *decoder) formatError(err error) error {
	return &liberrors.ErrDescriptorFormat{
		Line: d.lineNum,
		Text: d.lineText,
		Err:  err,
	}
}

// reportRecovered reports a line that has been ignored or filled with defaults by loose mode.
func (d *decoder) reportRecovered(err error) {
	d.log.WithFields(logrus.Fields{
		"line": d.lineNum,
		"text": d.lineText,
	}).WithError(err).Debug("session descriptor: recovered invalid line")
}

// check returns err in strict mode and reports it in loose mode.
func (d *decoder) check(err error) error {
	if d.strict {
		return err
	}
	d.reportRecovered(err)
	return nil
}

func (d *decoder) currentMedia() *Media {
	if len(d.sd.Medias) == 0 {
		return nil
	}
	return d.sd.Medias[len(d.sd.Medias)-1]
}

func (d *decoder) decodeLine(line string) error {
	if line == "" {
		return nil
	}

	d.lineText = line

	if len(line) < 2 || line[1] != '=' {
		err := d.check(fmt.Errorf("%w: line is not in the form <type>=<value>", errInvalidSyntax))
		if err != nil {
			return d.formatError(err)
		}
		return nil
	}

	err := d.decodeField(line[0], line[2:])
	if err != nil {
		return d.formatError(err)
	}

	return nil
}

func (d *decoder) decodeField(key byte, value string) error {
	media := d.currentMedia()

	if media != nil {
		switch key {
		case 'm':
			return d.unmarshalMedia(value)

		case 'i':
			return d.unmarshalMediaTitle(media, value)

		case 'c':
			return d.unmarshalMediaConnection(media, value)

		case 'b':
			return d.unmarshalMediaBandwidth(media, value)

		case 'k':
			return nil

		case 'a':
			return d.unmarshalMediaAttribute(media, value)
		}

		return d.check(fmt.Errorf("%w: unexpected type '%c' inside a media description", errInvalidSyntax, key))
	}

	switch key {
	case 'v':
		return d.unmarshalVersion(value)

	case 'o':
		return d.unmarshalOrigin(value)

	case 's':
		d.sd.SessionName = value
		d.sessionNameReceived = true
		return nil

	case 'i':
		v := value
		d.sd.SessionInformation = &v
		return nil

	case 'u':
		return d.unmarshalURI(value)

	case 'e':
		v := value
		d.sd.EmailAddress = &v
		return nil

	case 'p':
		v := value
		d.sd.PhoneNumber = &v
		return nil

	case 'c':
		return d.unmarshalSessionConnection(value)

	case 'b':
		return d.unmarshalSessionBandwidth(value)

	case 't':
		return d.unmarshalTiming(value)

	case 'r':
		return d.unmarshalRepeatTimes(value)

	case 'z', 'k':
		return nil

	case 'a':
		return d.unmarshalSessionAttribute(value)

	case 'm':
		return d.unmarshalMedia(value)
	}

	return d.check(fmt.Errorf("%w: unknown type '%c'", errInvalidSyntax, key))
}

func (d *decoder) unmarshalVersion(value string) error {
	if d.versionReceived {
		return d.check(fmt.Errorf("%w: duplicate version", errInvalidSyntax))
	}
	d.versionReceived = true

	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		// version zero is the only one defined, assume it
		return d.check(fmt.Errorf("%w `v=%v`", errInvalidNumericValue, value))
	}

	// fatal in both modes
	if v != 0 {
		return fmt.Errorf("%w: unsupported version %d", errInvalidValue, v)
	}

	return nil
}

// fillOrigin fills the six origin fields in loose mode.
// The network type is searched from the right: fields on its left are
// session version, session id and username, in this order, from right to left.
// Missing fields are set to OriginPlaceholder.
func fillOrigin(fields []string) Origin {
	o := Origin{
		Username:       OriginPlaceholder,
		SessionID:      OriginPlaceholder,
		SessionVersion: OriginPlaceholder,
		NetworkType:    OriginPlaceholder,
		AddressType:    OriginPlaceholder,
		UnicastAddress: OriginPlaceholder,
	}

	in := -1
	for i := len(fields) - 1; i >= 0; i-- {
		if strings.EqualFold(fields[i], "IN") {
			in = i
			break
		}
	}

	if in < 0 {
		dst := []*string{
			&o.Username, &o.SessionID, &o.SessionVersion,
			&o.NetworkType, &o.AddressType, &o.UnicastAddress,
		}
		for i, f := range fields {
			if i >= len(dst) {
				break
			}
			*dst[i] = f
		}
		return o
	}

	o.NetworkType = fields[in]
	if len(fields) > in+1 {
		o.AddressType = fields[in+1]
	}
	if len(fields) > in+2 {
		o.UnicastAddress = strings.Join(fields[in+2:], " ")
	}

	lead := fields[:in]
	if len(lead) > 0 {
		o.SessionVersion = lead[len(lead)-1]
		lead = lead[:len(lead)-1]
	}
	if len(lead) > 0 {
		o.SessionID = lead[len(lead)-1]
		lead = lead[:len(lead)-1]
	}
	if len(lead) > 0 {
		o.Username = strings.Join(lead, " ")
	}

	return o
}

func (d *decoder) unmarshalOrigin(value string) error {
	if d.originReceived {
		return d.check(fmt.Errorf("%w: duplicate origin", errInvalidSyntax))
	}
	d.originReceived = true

	fields := strings.Fields(value)

	if len(fields) != 6 {
		err := d.check(fmt.Errorf("%w `o=%v`: expected 6 fields, got %d", errInvalidSyntax, value, len(fields)))
		if err != nil {
			return err
		}
		d.sd.Origin = fillOrigin(fields)
		return nil
	}

	d.sd.Origin = Origin{
		Username:       fields[0],
		SessionID:      fields[1],
		SessionVersion: fields[2],
		NetworkType:    fields[3],
		AddressType:    fields[4],
		UnicastAddress: fields[5],
	}

	return nil
}

func (d *decoder) unmarshalURI(value string) error {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || !u.IsAbs() {
		return d.check(fmt.Errorf("%w `u=%v`", errInvalidValue, value))
	}

	d.sd.URI = u
	return nil
}

func (d *decoder) unmarshalSessionConnection(value string) error {
	conn, err := unmarshalConnection(value, d.strict)
	if err != nil {
		err = d.check(err)
		if err != nil {
			return err
		}
		if conn == nil {
			return nil
		}
	}

	d.sd.Connection = conn
	return nil
}

func (d *decoder) unmarshalMediaConnection(media *Media, value string) error {
	conn, err := unmarshalConnection(value, d.strict)
	if err != nil {
		err = d.check(err)
		if err != nil {
			return err
		}
		if conn == nil {
			return nil
		}
	}

	media.Connections = append(media.Connections, conn)
	return nil
}

func unmarshalBandwidth(value string) (Bandwidth, error) {
	typ, val, ok := strings.Cut(value, ":")
	if !ok || typ == "" {
		return Bandwidth{}, fmt.Errorf("%w `b=%v`", errInvalidSyntax, value)
	}

	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || v < 0 {
		return Bandwidth{}, fmt.Errorf("%w `b=%v`", errInvalidNumericValue, value)
	}

	return Bandwidth{
		Type:  typ,
		Value: v,
	}, nil
}

func (d *decoder) unmarshalSessionBandwidth(value string) error {
	bw, err := unmarshalBandwidth(value)
	if err != nil {
		return d.check(err)
	}

	d.sd.Bandwidths = append(d.sd.Bandwidths, bw)
	return nil
}

func (d *decoder) unmarshalMediaBandwidth(media *Media, value string) error {
	bw, err := unmarshalBandwidth(value)
	if err != nil {
		return d.check(err)
	}

	media.Bandwidths = append(media.Bandwidths, bw)
	return nil
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, c := range v {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (d *decoder) unmarshalTiming(value string) error {
	fields := strings.Fields(value)

	if len(fields) != 2 || !isNumeric(fields[0]) || !isNumeric(fields[1]) {
		err := d.check(fmt.Errorf("%w `t=%v`", errInvalidSyntax, value))
		if err != nil {
			return err
		}

		// special case for some FLIR cameras
		if value != "now-" {
			return nil
		}
		fields = []string{"0", "0"}
	}

	d.sd.Timings = append(d.sd.Timings, Timing{
		StartTime: fields[0],
		StopTime:  fields[1],
	})
	d.timingReceived = true

	return nil
}

// repeat times are accepted but not modeled.
func (d *decoder) unmarshalRepeatTimes(value string) error {
	if !d.timingReceived {
		return d.check(fmt.Errorf("%w: repeat times without timing", errInvalidSyntax))
	}

	if len(strings.Fields(value)) < 3 {
		return d.check(fmt.Errorf("%w `r=%v`", errInvalidSyntax, value))
	}

	return nil
}

func (d *decoder) unmarshalAttribute(value string) (Attribute, error) {
	key, val, colon := strings.Cut(value, ":")
	if key == "" {
		return nil, d.check(fmt.Errorf("%w `a=%v`", errInvalidSyntax, value))
	}

	attr, err := d.registry.Decode(key, val)
	if err != nil {
		err = d.check(err)
		if err != nil {
			return nil, err
		}
		attr = &GenericAttribute{Name: key, Content: val}
	}

	if ga, ok := attr.(*GenericAttribute); ok && colon && val == "" {
		ga.EmptyValue = true
	}

	return attr, nil
}

func (d *decoder) unmarshalSessionAttribute(value string) error {
	attr, err := d.unmarshalAttribute(value)
	if err != nil {
		return err
	}

	if attr != nil {
		d.sd.Attributes = append(d.sd.Attributes, attr)
	}
	return nil
}

func (d *decoder) unmarshalMediaAttribute(media *Media, value string) error {
	attr, err := d.unmarshalAttribute(value)
	if err != nil {
		return err
	}

	if attr != nil {
		media.Attributes = append(media.Attributes, attr)
	}
	return nil
}

func (d *decoder) unmarshalMedia(value string) error {
	fields := strings.Fields(value)

	if len(fields) < 4 {
		err := d.check(fmt.Errorf("%w `m=%v`", errInvalidSyntax, value))
		if err != nil {
			return err
		}
	}

	// in loose mode, the media is opened anyway in order to attach
	// the following lines to it.
	media := &Media{
		NumberOfPorts: 1,
	}

	if len(fields) > 0 {
		media.Type = fields[0]
	}

	if len(fields) > 1 {
		port, count, _ := strings.Cut(fields[1], "/")

		var err error
		media.Port, err = parseSuffixNumber(port, 0, 65535)
		if err != nil {
			err = d.check(err)
			if err != nil {
				return err
			}
		}

		if count != "" {
			n, err := parseSuffixNumber(count, 1, 65535)
			if err != nil {
				err = d.check(err)
				if err != nil {
					return err
				}
			} else {
				media.NumberOfPorts = n
			}
		}
	}

	if len(fields) > 2 {
		media.Protocol = fields[2]
	}

	if len(fields) > 3 {
		media.Formats = fields[3:]
	}

	d.sd.Medias = append(d.sd.Medias, media)
	return nil
}

func (d *decoder) unmarshalMediaTitle(media *Media, value string) error {
	v := value
	media.Title = &v
	return nil
}

func (d *decoder) finalize() error {
	d.lineNum = 0
	d.lineText = ""

	if !d.versionReceived {
		err := d.check(fmt.Errorf("%w: version missing", errInvalidSyntax))
		if err != nil {
			return d.formatError(err)
		}
	}

	if !d.originReceived {
		err := d.check(fmt.Errorf("%w: origin missing", errInvalidSyntax))
		if err != nil {
			return d.formatError(err)
		}
		d.sd.Origin = fillOrigin(nil)
	}

	if !d.sessionNameReceived {
		err := d.check(fmt.Errorf("%w: session name missing", errInvalidSyntax))
		if err != nil {
			return d.formatError(err)
		}
	}

	return nil
}
