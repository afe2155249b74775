package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareDownscalesLargeImage(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		wantW      int
		wantH      int
	}{
		{"landscape over limit", 2000, 1000, 1280, 640},
		{"portrait over limit", 1000, 2000, 640, 1280},
		{"square over limit", 1600, 1600, 1280, 1280},
		{"exactly at limit", 1280, 720, 1280, 720},
		{"small image untouched", 640, 480, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepared, err := Prepare(encodeJPEG(t, tt.srcW, tt.srcH))
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			if prepared.Width != tt.wantW || prepared.Height != tt.wantH {
				t.Errorf("dimensions = %dx%d, want %dx%d", prepared.Width, prepared.Height, tt.wantW, tt.wantH)
			}
			if longer(prepared.Width, prepared.Height) > maxLongEdge {
				t.Errorf("longer edge %d exceeds %d", longer(prepared.Width, prepared.Height), maxLongEdge)
			}
		})
	}
}

func TestPrepareOutputIsJPEG(t *testing.T) {
	prepared, err := Prepare(encodeJPEG(t, 800, 600))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(prepared.JPEG))
	if err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() != prepared.Width || img.Bounds().Dy() != prepared.Height {
		t.Errorf("reported dimensions %dx%d disagree with encoded %dx%d",
			prepared.Width, prepared.Height, img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestPrepareAcceptsPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 200))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	prepared, err := Prepare(buf.Bytes())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, format, err := image.Decode(bytes.NewReader(prepared.JPEG)); err != nil || format != "jpeg" {
		t.Errorf("PNG input should re-encode as jpeg, got format=%q err=%v", format, err)
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, err := Prepare([]byte("definitely not an image"))
	if !errors.Is(err, ErrImageDecodeFailed) {
		t.Errorf("err = %v, want ErrImageDecodeFailed", err)
	}
}

func TestPrepareRejectsTruncatedHEIC(t *testing.T) {
	// Valid ftyp box header with a heic brand and nothing behind it. Both
	// decoders must reject it and the failure must be distinguishable from a
	// plain decode error.
	header := []byte{0x00, 0x00, 0x00, 0x18}
	header = append(header, []byte("ftypheic")...)
	header = append(header, make([]byte, 12)...)

	_, err := Prepare(header)
	if !errors.Is(err, ErrHeicConversionFailed) {
		t.Errorf("err = %v, want ErrHeicConversionFailed", err)
	}
}

func TestIsHEIC(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"heic brand", append([]byte{0, 0, 0, 24}, []byte("ftypheic")...), true},
		{"mif1 brand", append([]byte{0, 0, 0, 24}, []byte("ftypmif1")...), true},
		{"mp4 brand", append([]byte{0, 0, 0, 24}, []byte("ftypisom")...), false},
		{"jpeg magic", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0, 0, 0, 0, 0}, false},
		{"too short", []byte("ftyp"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHEIC(tt.data); got != tt.want {
				t.Errorf("isHEIC = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyOrientationSwapsAxes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})

	rotated := applyOrientation(src, 6)
	b := rotated.Bounds()
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("rotate 90 should swap axes, got %dx%d", b.Dx(), b.Dy())
	}
	// Top-left of the source lands in the top-right after a clockwise turn.
	r, _, _, _ := rotated.At(1, 0).RGBA()
	if r == 0 {
		t.Error("marker pixel not at expected position after rotation")
	}
}

func TestApplyOrientationIdentity(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	if got := applyOrientation(src, 1); got != src {
		t.Error("orientation 1 should return the image unchanged")
	}
}
