package phash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// verify that hashing the same image twice is deterministic.
func TestHashDeterministic(t *testing.T) {
	data := encodePNG(t, gradientImage(64, 64))

	h1, err := Hash(data)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(data)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s != %s", h1, h2)
	}
}

// verify that the hash is always 16 hex characters (64 bits).
func TestHashLength(t *testing.T) {
	data := encodePNG(t, solidImage(64, 64, color.RGBA{128, 128, 128, 255}))
	h, err := Hash(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%s)", len(h), h)
	}
}

// verify that a flat solid-color image always leaves bit 63 (the reserved
// padding bit) zero.
func TestHashReservedBitStaysZero(t *testing.T) {
	data := encodePNG(t, solidImage(32, 32, color.RGBA{10, 20, 30, 255}))
	h, err := Hash(data)
	if err != nil {
		t.Fatal(err)
	}
	if h[0] > '7' {
		t.Fatalf("expected top nibble's MSB (bit 63) to be zero, got hash %s", h)
	}
}

// verify that visually distinct images produce different hashes.
func TestHashDistinctForDistinctImages(t *testing.T) {
	h1, err := Hash(encodePNG(t, solidImage(64, 64, color.RGBA{255, 0, 0, 255})))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(encodePNG(t, gradientImage(64, 64)))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct images to produce distinct hashes")
	}
}

// verify that malformed image bytes are rejected.
func TestHashRejectsGarbage(t *testing.T) {
	if _, err := Hash([]byte("not an image")); err == nil {
		t.Fatal("expected decode error for non-image bytes")
	}
}
