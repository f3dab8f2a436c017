package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

var (
	ErrTooLarge     = errors.New("file too large")
	ErrInvalidImage = errors.New("invalid image")
	ErrUnsupported  = errors.New("unsupported image type")
)

const (
	contentTypeJPEG = "image/jpeg"
	contentTypePNG  = "image/png"
	contentTypeWebP = "image/webp"
)

type ImageProcessOptions struct {
	MaxBytes    int64
	MaxDim      int
	JPEGQuality int
	// Transparent pixels are flattened onto this color.
	Background color.RGBA
}

// DefaultImageOptions suits both profile pictures and group cover images.
func DefaultImageOptions() ImageProcessOptions {
	return ImageProcessOptions{
		MaxBytes:    5 * 1024 * 1024,
		MaxDim:      2048,
		JPEGQuality: 85,
		Background:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

func (o ImageProcessOptions) withDefaults() ImageProcessOptions {
	def := DefaultImageOptions()
	if o.MaxBytes <= 0 {
		o.MaxBytes = def.MaxBytes
	}
	if o.MaxDim <= 0 {
		o.MaxDim = def.MaxDim
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = def.JPEGQuality
	}
	if o.Background.A == 0 {
		o.Background = def.Background
	}
	return o
}

// ProcessedImage is a normalized upload, always JPEG.
type ProcessedImage struct {
	Data          []byte
	ContentType   string
	Width, Height int
}

// DetectImageType reports the content type of an upload from its magic number.
// Only JPEG, PNG and WebP are accepted.
func DetectImageType(header []byte) (string, error) {
	if len(header) < 12 {
		return "", ErrInvalidImage
	}
	switch {
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return contentTypeJPEG, nil
	case bytes.HasPrefix(header, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return contentTypePNG, nil
	case bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return contentTypeWebP, nil
	}
	return "", ErrUnsupported
}

// ProcessImage reads an upload, decodes it, shrinks it to fit within MaxDim and
// re-encodes it as JPEG. It never upscales.
func ProcessImage(r io.Reader, opts ImageProcessOptions) (*ProcessedImage, error) {
	opts = opts.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, opts.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, ErrTooLarge
	}

	src, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	tw, th := fitWithin(bounds.Dx(), bounds.Dy(), opts.MaxDim)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return &ProcessedImage{Data: out.Bytes(), ContentType: contentTypeJPEG, Width: tw, Height: th}, nil
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) < 12 {
		return nil, ErrInvalidImage
	}
	kind, err := DetectImageType(data[:12])
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch kind {
	case contentTypeJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case contentTypePNG:
		img, err = png.Decode(bytes.NewReader(data))
	case contentTypeWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if img.Bounds().Dx() <= 0 || img.Bounds().Dy() <= 0 {
		return nil, ErrInvalidImage
	}
	return img, nil
}

// fitWithin scales (w, h) down so neither side exceeds limit, keeping aspect ratio.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	tw, th := limit, limit
	if w >= h {
		th = int(float64(h) * float64(limit) / float64(w))
	} else {
		tw = int(float64(w) * float64(limit) / float64(h))
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}
