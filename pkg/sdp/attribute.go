package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute is an attribute line (a=).
// Specialized attributes are a refinement of the key/value pair,
// that is always available through Key() and Value().
type Attribute interface {
	Key() string

	// Value returns the raw text after the first colon,
	// or an empty string when there's no colon.
	Value() string
}

// GenericAttribute is an attribute without a specialized decoder.
type GenericAttribute struct {
	Name    string
	Content string

	// whether the key is followed by a colon and an empty value (a=key:).
	// It is ignored when Content is not empty.
	EmptyValue bool
}

// Key implements Attribute.
func (a *GenericAttribute) Key() string {
	return a.Name
}

// Value implements Attribute.
func (a *GenericAttribute) Value() string {
	return a.Content
}

// RTPMapAttribute is a rtpmap attribute.
type RTPMapAttribute struct {
	PayloadType  uint8
	EncodingName string
	ClockRate    int

	// encoding parameters (optional), for instance the channel count.
	EncodingParameters string

	key string
	raw string
}

// Key implements Attribute.
// It returns the key as it was written, when the attribute has been decoded.
func (a *RTPMapAttribute) Key() string {
	if a.key != "" {
		return a.key
	}
	return "rtpmap"
}

func (a *RTPMapAttribute) setKey(key string) {
	if key != "rtpmap" {
		a.key = key
	}
}

// Value implements Attribute.
func (a *RTPMapAttribute) Value() string {
	if a.raw != "" {
		return a.raw
	}

	ret := strconv.FormatUint(uint64(a.PayloadType), 10) + " " +
		a.EncodingName + "/" + strconv.Itoa(a.ClockRate)
	if a.EncodingParameters != "" {
		ret += "/" + a.EncodingParameters
	}
	return ret
}

// FmtpAttribute is a fmtp attribute.
type FmtpAttribute struct {
	PayloadType uint8

	// format parameters, verbatim.
	FormatParameters string

	key string
	raw string
}

// Key implements Attribute.
// It returns the key as it was written, when the attribute has been decoded.
func (a *FmtpAttribute) Key() string {
	if a.key != "" {
		return a.key
	}
	return "fmtp"
}

func (a *FmtpAttribute) setKey(key string) {
	if key != "fmtp" {
		a.key = key
	}
}

// Value implements Attribute.
func (a *FmtpAttribute) Value() string {
	if a.raw != "" {
		return a.raw
	}
	return strconv.FormatUint(uint64(a.PayloadType), 10) + " " + a.FormatParameters
}

// Parameters splits format parameters into a map.
// Keys are converted to lower case.
func (a *FmtpAttribute) Parameters() map[string]string {
	ret := make(map[string]string)

	for _, kv := range strings.Split(a.FormatParameters, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}

		k, v, _ := strings.Cut(kv, "=")
		ret[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	return ret
}

func parsePayloadType(v string) (uint8, error) {
	tmp, err := strconv.ParseUint(v, 10, 8)
	if err != nil || tmp > 127 {
		return 0, fmt.Errorf("%w: invalid payload type `%v`", errInvalidNumericValue, v)
	}
	return uint8(tmp), nil
}

func decodeRTPMap(value string) (Attribute, error) {
	pt, rest, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok {
		return nil, fmt.Errorf("%w `rtpmap:%v`", errInvalidSyntax, value)
	}

	payloadType, err := parsePayloadType(pt)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(strings.TrimSpace(rest), "/")
	if len(parts) < 2 || parts[0] == "" {
		return nil, fmt.Errorf("%w `rtpmap:%v`", errInvalidSyntax, value)
	}

	clockRate, err := strconv.Atoi(parts[1])
	if err != nil || clockRate <= 0 {
		return nil, fmt.Errorf("%w: invalid clock rate `%v`", errInvalidNumericValue, parts[1])
	}

	return &RTPMapAttribute{
		PayloadType:        payloadType,
		EncodingName:       parts[0],
		ClockRate:          clockRate,
		EncodingParameters: strings.Join(parts[2:], "/"),
		raw:                value,
	}, nil
}

func decodeFmtp(value string) (Attribute, error) {
	pt, rest, _ := strings.Cut(strings.TrimSpace(value), " ")

	payloadType, err := parsePayloadType(pt)
	if err != nil {
		return nil, err
	}

	return &FmtpAttribute{
		PayloadType:      payloadType,
		FormatParameters: strings.TrimSpace(rest),
		raw:              value,
	}, nil
}

// attributes that keep the case of their key.
type keyedAttribute interface {
	setKey(key string)
}

// AttributeDecoder decodes the value of an attribute into a specialized Attribute.
type AttributeDecoder func(value string) (Attribute, error)

// AttributeRegistry maps attribute keys to specialized decoders.
// It must not be modified while it's in use by a Reader.
type AttributeRegistry struct {
	decoders map[string]AttributeDecoder
}

// NewAttributeRegistry allocates an AttributeRegistry that contains
// decoders for rtpmap and fmtp.
func NewAttributeRegistry() *AttributeRegistry {
	r := &AttributeRegistry{
		decoders: make(map[string]AttributeDecoder),
	}
	r.Register("rtpmap", decodeRTPMap)
	r.Register("fmtp", decodeFmtp)
	return r
}

// Register adds or replaces the decoder of an attribute key.
// Keys are case insensitive.
func (r *AttributeRegistry) Register(key string, dec AttributeDecoder) {
	r.decoders[strings.ToLower(key)] = dec
}

// Decode decodes an attribute. Keys without a decoder produce a *GenericAttribute.
func (r *AttributeRegistry) Decode(key string, value string) (Attribute, error) {
	dec, ok := r.decoders[strings.ToLower(key)]
	if !ok {
		return &GenericAttribute{Name: key, Content: value}, nil
	}

	attr, err := dec(value)
	if err != nil {
		return nil, err
	}

	if ka, ok := attr.(keyedAttribute); ok {
		ka.setKey(key)
	}

	return attr, nil
}

var defaultRegistry = NewAttributeRegistry()
