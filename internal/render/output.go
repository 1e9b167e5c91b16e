package render

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
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

// ParseFormat validates a format name, case-insensitively. "jpg" is accepted.
func ParseFormat(s string) (ImageFormat, error) {
	f := ImageFormat(strings.ToLower(s))
	if f == "jpg" {
		f = ImageJPEG
	}
	if _, ok := validImageFormats[f]; !ok {
		return "", fmt.Errorf("invalid image format: %s", s)
	}
	return f, nil
}

// FormatFromPath guesses the format from the file extension, defaulting to PNG.
func FormatFromPath(path string) ImageFormat {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return ImagePNG
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)

	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	}

	return fmt.Errorf("invalid image format: %s", format)
}

// WriteFile encodes img into a new file at path.
func WriteFile(path string, img image.Image, format ImageFormat) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	if err = Encode(out, img, format); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
