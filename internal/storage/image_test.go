package storage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestProcessImage_PNG_ToJPEG(t *testing.T) {
	out, err := ProcessImage(bytes.NewReader(encodePNG(t, 120, 60)), DefaultImageOptions())
	if err != nil {
		t.Fatalf("ProcessImage: %v", err)
	}
	if out.ContentType != "image/jpeg" {
		t.Fatalf("content type = %q, want image/jpeg", out.ContentType)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("jpeg decode: %v", err)
	}
	if decoded.Bounds().Dx() != 120 || decoded.Bounds().Dy() != 60 {
		t.Fatalf("dims = %dx%d, want 120x60", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestProcessImage_DownscalesToFit(t *testing.T) {
	opts := DefaultImageOptions()
	opts.MaxDim = 100
	out, err := ProcessImage(bytes.NewReader(encodePNG(t, 200, 50)), opts)
	if err != nil {
		t.Fatalf("ProcessImage: %v", err)
	}
	// 200x50 scaled to fit MaxDim=100 => 100x25
	if out.Width != 100 || out.Height != 25 {
		t.Fatalf("dims = %dx%d, want 100x25", out.Width, out.Height)
	}
}

func TestProcessImage_Rejects(t *testing.T) {
	small := DefaultImageOptions()
	small.MaxBytes = 10

	tests := []struct {
		name    string
		payload []byte
		opts    ImageProcessOptions
		want    error
	}{
		{"too large", bytes.Repeat([]byte{0x00}, 11), small, ErrTooLarge},
		{"unknown magic", bytes.Repeat([]byte{0x01}, 128), DefaultImageOptions(), ErrUnsupported},
		{"truncated", []byte{0xFF, 0xD8}, DefaultImageOptions(), ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProcessImage(bytes.NewReader(tt.payload), tt.opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDetectImageType(t *testing.T) {
	webp := append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0)
	if ct, err := DetectImageType(webp); err != nil || ct != "image/webp" {
		t.Errorf("DetectImageType(webp) = %q, %v", ct, err)
	}
	if ct, err := DetectImageType(encodePNG(t, 2, 2)[:12]); err != nil || ct != "image/png" {
		t.Errorf("DetectImageType(png) = %q, %v", ct, err)
	}
}

func TestSafeKey(t *testing.T) {
	if _, err := SafeKey("../x"); err == nil {
		t.Fatalf("expected error for traversal")
	}
	if _, err := SafeKey("..\\x"); err == nil {
		t.Fatalf("expected error for backslash")
	}
	key, err := SafeKey("/groups//a.jpg")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if key != "groups/a.jpg" {
		t.Fatalf("key = %q", key)
	}
}

func TestPublicURL(t *testing.T) {
	got, err := PublicURL("https://cdn.example.com/media/", "groups/a.jpg")
	if err != nil {
		t.Fatalf("PublicURL: %v", err)
	}
	if got != "https://cdn.example.com/media/groups/a.jpg" {
		t.Errorf("PublicURL = %q", got)
	}
}
