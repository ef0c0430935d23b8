package chart

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// ParseImageFormat accepts png, jpeg and jpg in any case.
func ParseImageFormat(s string) (ImageFormat, error) {
	f := ImageFormat(strings.ToLower(s))
	if f == "jpg" {
		f = ImageJPEG
	}
	if _, ok := validImageFormats[f]; !ok {
		return "", fmt.Errorf("invalid image format: %s", s)
	}
	return f, nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 98})
	default:
		return fmt.Errorf("invalid image format: %s", format)
	}
}

// WriteFile encodes img into a new file at path.
func WriteFile(path string, img image.Image, format ImageFormat) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return Encode(out, img, format)
}

// FormatPlain prints a tick value with up to six significant digits.
func FormatPlain(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// FormatFrequency prints a tick value in Hz with an SI prefix.
func FormatFrequency(v float64) string {
	return humanize.SIWithDigits(v, 3, "Hz")
}

// FormatDecibel prints a tick value in dB.
func FormatDecibel(v float64) string {
	return fmt.Sprintf("%.1f dB", v)
}
