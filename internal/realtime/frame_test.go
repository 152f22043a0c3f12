package realtime

import (
	"errors"
	"testing"

	"github.com/dokzlo13/wledbridge/internal/color"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
		want    []color.RGB
	}{
		{
			name: "single_red_pixel",
			data: []byte{4, 0, 0, 0, 255, 0, 0},
			want: []color.RGB{{R: 255}},
		},
		{
			name: "two_pixels",
			data: []byte{4, 2, 0, 0, 1, 2, 3, 4, 5, 6},
			want: []color.RGB{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}},
		},
		{
			name: "trailing_partial_group_discarded",
			data: []byte{4, 0, 0, 0, 1, 2, 3, 9, 9},
			want: []color.RGB{{R: 1, G: 2, B: 3}},
		},
		{
			name:    "wrong_marker",
			data:    []byte{2, 0, 0, 0, 255, 0, 0},
			wantErr: ErrBadMarker,
		},
		{
			name:    "header_only",
			data:    []byte{4, 0, 0, 0},
			wantErr: ErrShortFrame,
		},
		{
			name:    "partial_pixel_only",
			data:    []byte{4, 0, 0, 0, 255, 0},
			wantErr: ErrShortFrame,
		},
		{
			name:    "empty",
			data:    nil,
			wantErr: ErrShortFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeFrame() unexpected error: %v", err)
			}
			if len(frame.Pixels) != len(tt.want) {
				t.Fatalf("got %d pixels, want %d", len(frame.Pixels), len(tt.want))
			}
			for i := range tt.want {
				if frame.Pixels[i] != tt.want[i] {
					t.Errorf("pixel %d = %v, want %v", i, frame.Pixels[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecodeFrame_Header(t *testing.T) {
	frame, err := DecodeFrame([]byte{4, 5, 0x01, 0x02, 10, 20, 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Timeout != 5 {
		t.Errorf("Timeout = %d, want 5", frame.Timeout)
	}
	if frame.Start != 0x0102 {
		t.Errorf("Start = %d, want %d", frame.Start, 0x0102)
	}
	if got := frame.Representative(); got != (color.RGB{R: 10, G: 20, B: 30}) {
		t.Errorf("Representative() = %v", got)
	}
}
