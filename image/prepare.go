package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/gen2brain/heic"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	// maxLongEdge is the upper bound on the longer image edge after preparation.
	maxLongEdge = 1280
	// jpegQuality is the upload compression quality.
	jpegQuality = 78
	// heicJPEGQuality is used when a HEIC source converts without downscaling;
	// the conversion itself should lose as little as possible.
	heicJPEGQuality = 88
)

var (
	// ErrHeicConversionFailed means both HEIC decoders rejected the source.
	ErrHeicConversionFailed = errors.New("HEIC conversion failed")
	// ErrImageDecodeFailed means the source bytes are not a readable image.
	ErrImageDecodeFailed = errors.New("image decode failed")
)

// Prepared is an upload-ready JPEG with its final dimensions.
type Prepared struct {
	JPEG   []byte
	Width  int
	Height int
}

// Prepare normalizes a captured or selected photo into an upload-ready JPEG:
// HEIC/HEIF sources are converted, EXIF orientation is applied, and images
// whose longer edge exceeds 1280px are downscaled preserving aspect ratio.
func Prepare(data []byte) (*Prepared, error) {
	var (
		img      image.Image
		err      error
		fromHeic = isHEIC(data)
	)

	if fromHeic {
		img, err = decodeHEIC(data)
		if err != nil {
			return nil, err
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageDecodeFailed, err)
		}
	}

	// EXIF orientation lives in the original bytes, not the decoded pixels.
	if orientation := orientationOf(data); orientation != 1 {
		img = applyOrientation(img, orientation)
		log.Infof("applied orientation correction: %d", orientation)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	quality := jpegQuality
	if longer(width, height) > maxLongEdge {
		img = downscale(img, width, height)
		bounds = img.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	} else if fromHeic {
		quality = heicJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode prepared image: %w", err)
	}

	log.Infof("image prepared: %d bytes -> %d bytes (%dx%d, quality %d, heic=%v)",
		len(data), buf.Len(), width, height, quality, fromHeic)
	return &Prepared{JPEG: buf.Bytes(), Width: width, Height: height}, nil
}

// isHEIC sniffs the ISO-BMFF ftyp box for HEIC/HEIF brands.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// decodeHEIC tries the wazero-based decoder first and falls back to the
// libde265-backed one before giving up.
func decodeHEIC(data []byte) (image.Image, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	log.Warnf("primary HEIC decode failed, trying fallback: %v", err)

	img, fallbackErr := goheif.Decode(bytes.NewReader(data))
	if fallbackErr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: %v; fallback: %v", ErrHeicConversionFailed, err, fallbackErr)
}

func orientationOf(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation maps EXIF orientations 2-8 onto the decoded pixels.
// Each case is a coordinate remap; orientations 5-8 swap the axes.
func applyOrientation(img image.Image, orientation int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	remap := func(dw, dh int, at func(x, y int) (int, int)) image.Image {
		out := image.NewRGBA(image.Rect(0, 0, dw, dh))
		for y := 0; y < dh; y++ {
			for x := 0; x < dw; x++ {
				sx, sy := at(x, y)
				out.Set(x, y, img.At(b.Min.X+sx, b.Min.Y+sy))
			}
		}
		return out
	}

	switch orientation {
	case 2: // flip horizontal
		return remap(w, h, func(x, y int) (int, int) { return w - 1 - x, y })
	case 3: // rotate 180
		return remap(w, h, func(x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4: // flip vertical
		return remap(w, h, func(x, y int) (int, int) { return x, h - 1 - y })
	case 5: // transpose
		return remap(h, w, func(x, y int) (int, int) { return y, x })
	case 6: // rotate 90 clockwise
		return remap(h, w, func(x, y int) (int, int) { return y, h - 1 - x })
	case 7: // transverse
		return remap(h, w, func(x, y int) (int, int) { return w - 1 - y, h - 1 - x })
	case 8: // rotate 90 counter-clockwise
		return remap(h, w, func(x, y int) (int, int) { return w - 1 - y, x })
	default:
		return img
	}
}

func longer(w, h int) int {
	if w > h {
		return w
	}
	return h
}

// downscale fits the image into maxLongEdge on its longer side.
func downscale(img image.Image, width, height int) image.Image {
	scale := float64(maxLongEdge) / float64(longer(width, height))
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	out := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)
	return out
}
