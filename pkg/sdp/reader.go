package sdp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	errInvalidSyntax       = errors.New("invalid syntax")
	errInvalidNumericValue = errors.New("invalid numeric value")
	errInvalidValue        = errors.New("invalid value")
)

// Reader reads session descriptors.
//
// In strict mode, any line that doesn't respect the expected shape stops
// reading and a *liberrors.ErrDescriptorFormat is returned.
// In loose mode, invalid lines are ignored or filled with defaults, and
// reading stops only when the source cannot be read. Callers must not
// assume that a descriptor read in loose mode is complete.
type Reader struct {
	// enables strict mode.
	Strict bool

	// attribute decoders (optional).
	// It defaults to a registry containing rtpmap and fmtp.
	Registry *AttributeRegistry

	// logger (optional).
	// It defaults to the logrus standard logger.
	Log logrus.FieldLogger
}

// Read reads a session descriptor.
// The source is always read until its end, even when decoding stops at an invalid line.
func (r *Reader) Read(src io.Reader) (*SessionDescription, error) {
	registry := r.Registry
	if registry == nil {
		registry = defaultRegistry
	}

	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	br, ok := src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(src)
	}

	d := &decoder{
		strict:   r.Strict,
		registry: registry,
		log:      log,
		sd:       &SessionDescription{},
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("unable to read session descriptor: %w", err)
		}

		if line != "" {
			d.lineNum++
			ferr := d.decodeLine(strings.TrimRight(line, "\r\n"))
			if ferr != nil {
				if err == nil {
					_, err = io.Copy(io.Discard, br)
					if err != nil {
						return nil, fmt.Errorf("unable to read session descriptor: %w", err)
					}
				}
				return nil, ferr
			}
		}

		if err != nil {
			break
		}
	}

	ferr := d.finalize()
	if ferr != nil {
		return nil, ferr
	}

	return d.sd, nil
}

// ReadStrict reads a session descriptor in strict mode.
func ReadStrict(src io.Reader) (*SessionDescription, error) {
	return (&Reader{Strict: true}).Read(src)
}

// ReadLoose reads a session descriptor in loose mode.
func ReadLoose(src io.Reader) (*SessionDescription, error) {
	return (&Reader{}).Read(src)
}

// Unmarshal decodes a session descriptor from a buffer.
func Unmarshal(byts []byte, strict bool) (*SessionDescription, error) {
	return (&Reader{Strict: strict}).Read(bytes.NewReader(byts))
}
