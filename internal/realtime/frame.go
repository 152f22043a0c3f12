// Package realtime decodes WLED realtime UDP frames and gates them into color events.
package realtime

import (
	"encoding/binary"
	"errors"

	"github.com/dokzlo13/wledbridge/internal/color"
)

// Protocol constants for the DNRGB realtime format.
const (
	ProtocolDNRGB byte = 4

	HeaderSize    = 4
	BytesPerPixel = 3
	MinFrameSize  = HeaderSize + BytesPerPixel

	// MaxDatagramSize bounds a single UDP read.
	MaxDatagramSize = 65536
)

var (
	// ErrShortFrame is returned for datagrams smaller than a header plus one pixel.
	ErrShortFrame = errors.New("frame too short")
	// ErrBadMarker is returned when the protocol byte is not DNRGB.
	ErrBadMarker = errors.New("unsupported protocol marker")
)

// Frame is one decoded realtime datagram.
type Frame struct {
	Protocol byte
	Timeout  byte   // seconds the sender wants realtime mode held
	Start    uint16 // index of the first pixel in the datagram
	Pixels   []color.RGB
}

// DecodeFrame parses a DNRGB datagram.
// A trailing partial pixel group is discarded.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, ErrShortFrame
	}
	if data[0] != ProtocolDNRGB {
		return Frame{}, ErrBadMarker
	}

	payload := data[HeaderSize:]
	n := len(payload) / BytesPerPixel
	pixels := make([]color.RGB, n)
	for i := 0; i < n; i++ {
		pixels[i] = color.FromSlice(payload[i*BytesPerPixel:])
	}

	return Frame{
		Protocol: data[0],
		Timeout:  data[1],
		Start:    binary.BigEndian.Uint16(data[2:4]),
		Pixels:   pixels,
	}, nil
}

// Representative returns the color that summarizes the whole frame.
func (f Frame) Representative() color.RGB {
	return f.Pixels[0]
}
