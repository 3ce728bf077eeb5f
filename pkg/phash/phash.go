// Package phash computes a deterministic 64-bit perceptual hash of an
// image via grayscale downsampling, a 2D discrete cosine transform, and a
// median threshold over the low-frequency coefficients.
//
// Resampling uses golang.org/x/image/draw.CatmullRom for a deterministic
// resampler rather than hand-rolling one; the DCT-II math itself has no
// suitable library equivalent and is implemented directly (see DESIGN.md).
package phash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
)

// side is the resampled grayscale image's width and height in pixels.
const side = 32

// dctBlock is the size of the top-left DCT block retained.
const dctBlock = 8

// ErrDecodeError is returned when the input bytes cannot be decoded as an
// image the standard library (plus its registered format plugins)
// recognizes.
var ErrDecodeError = errors.New("phash: could not decode image")

// Hash computes the 16-hex-char perceptual hash of the given image bytes.
func Hash(imageBytes []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecodeError, err)
	}

	gray := toLuminance(img)
	coeffs := dct2D(gray)

	// Top-left 8x8 block, dropping (0,0), in fixed row-major order.
	values := make([]float64, 0, dctBlock*dctBlock-1)
	for u := 0; u < dctBlock; u++ {
		for v := 0; v < dctBlock; v++ {
			if u == 0 && v == 0 {
				continue
			}
			values = append(values, coeffs[u][v])
		}
	}

	median := medianOf(values)

	var bitsOut uint64
	for i, val := range values {
		if val > median {
			bitPos := 62 - i // MSB-first packing; bit 63 stays 0 (reserved padding)
			bitsOut |= uint64(1) << uint(bitPos)
		}
	}

	return fmt.Sprintf("%016x", bitsOut), nil
}

// toLuminance resamples img to a side x side grid and returns the
// BT.601 luminance of each pixel as a float64 matrix.
func toLuminance(img image.Image) [][]float64 {
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([][]float64, side)
	for y := 0; y < side; y++ {
		row := make([]float64, side)
		for x := 0; x < side; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			// RGBA() returns 16-bit-scaled channel values; normalize to 8-bit.
			rf := float64(r >> 8)
			gf := float64(g >> 8)
			bf := float64(b >> 8)
			row[x] = 0.299*rf + 0.587*gf + 0.114*bf
		}
		out[y] = row
	}
	return out
}

// dct2D computes the forward 2D DCT-II of an NxN matrix with orthonormal
// scaling: c(0) = sqrt(1/N), c(u>0) = sqrt(2/N), N=32.
func dct2D(matrix [][]float64) [][]float64 {
	n := len(matrix)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}

	// Separable transform: rows first, then columns, each a 1D DCT-II.
	rowTransformed := make([][]float64, n)
	for y := 0; y < n; y++ {
		rowTransformed[y] = dct1D(matrix[y])
	}

	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rowTransformed[y][x]
		}
		transformedCol := dct1D(col)
		for y := 0; y < n; y++ {
			out[y][x] = transformedCol[y]
		}
	}

	return out
}

// dct1D computes the 1D DCT-II of input with orthonormal scaling.
func dct1D(input []float64) []float64 {
	n := len(input)
	out := make([]float64, n)
	for u := 0; u < n; u++ {
		var sum float64
		for x := 0; x < n; x++ {
			sum += input[x] * math.Cos(math.Pi/float64(n)*(float64(x)+0.5)*float64(u))
		}
		c := math.Sqrt(2.0 / float64(n))
		if u == 0 {
			c = math.Sqrt(1.0 / float64(n))
		}
		out[u] = c * sum
	}
	return out
}

// medianOf returns the median of a slice; the even-length branch is kept
// for completeness even though the 63-coefficient caller always passes an
// odd length.
func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	// Simple insertion sort: the slice is fixed at 63 elements, so an O(n^2)
	// sort is cheap and avoids pulling in sort.Float64s for a single call site.
	for i := 1; i < len(sorted); i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
