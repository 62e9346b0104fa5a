package description

import (
	"fmt"
	"net/url"

	"github.com/bluenviron/rtspmedia/pkg/sdp"
)

func atLeastOneHasMID(medias []*Media) bool {
	for _, media := range medias {
		if media.ID != "" {
			return true
		}
	}
	return false
}

func atLeastOneDoesntHaveMID(medias []*Media) bool {
	for _, media := range medias {
		if media.ID == "" {
			return true
		}
	}
	return false
}

func hasMediaWithID(medias []*Media, id string) bool {
	for _, media := range medias {
		if media.ID == id {
			return true
		}
	}
	return false
}

// Session is the description of a RTSP stream.
type Session struct {
	// base URL of the stream (optional).
	// It is provided by the caller, usually from the Content-Base header,
	// and is used to resolve media control attributes.
	BaseURL *url.URL

	// title of the stream (optional).
	Title string

	// available media streams.
	Medias []*Media
}

// Unmarshal decodes the description from a parsed session descriptor.
func (d *Session) Unmarshal(sd *sdp.SessionDescription) error {
	d.Title = sd.SessionName
	if d.Title == " " || d.Title == sdp.OriginPlaceholder {
		d.Title = ""
	}

	d.Medias = make([]*Media, len(sd.Medias))

	for i, md := range sd.Medias {
		var m Media
		err := m.Unmarshal(md, sd.MediaConnection(md))
		if err != nil {
			return fmt.Errorf("media %d is invalid: %w", i+1, err)
		}

		if m.ID != "" && hasMediaWithID(d.Medias[:i], m.ID) {
			return fmt.Errorf("duplicate media IDs")
		}

		d.Medias[i] = &m
	}

	if atLeastOneHasMID(d.Medias) && atLeastOneDoesntHaveMID(d.Medias) {
		return fmt.Errorf("media IDs sent partially")
	}

	return nil
}

// MediaURL returns the absolute URL of a media, resolved against BaseURL.
func (d *Session) MediaURL(m *Media) (*url.URL, error) {
	return m.URL(d.BaseURL)
}

// FindH264 returns the first H264 format and its media.
func (d *Session) FindH264() (*Media, *Format) {
	for _, media := range d.Medias {
		if f := media.FindFormat("H264"); f != nil {
			return media, f
		}
	}
	return nil, nil
}
