// Package testimage builds deterministic synthetic images for tests.
package testimage

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
)

// Solid returns a w×h image filled with c.
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Square returns a black w×h image with a centered white square of the given side.
func Square(w, h, side int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	x0, y0 := (w-side)/2, (h-side)/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x >= x0 && x < x0+side && y >= y0 && y < y0+side {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// PNG encodes img as PNG bytes.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Base64 encodes img as a bare base64 PNG.
func Base64(img image.Image) string {
	return base64.StdEncoding.EncodeToString(PNG(img))
}

// DataURL encodes img as a PNG data URL.
func DataURL(img image.Image) string {
	return "data:image/png;base64," + Base64(img)
}
