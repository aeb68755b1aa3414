package epd

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

func frameSize(width, height int) int {
	return (width + 7) / 8 * height
}

// packFrame converts img to the controller's RAM layout: rows of width bits,
// most significant bit first, 1 for white. A landscape image is rotated a
// quarter turn into portrait.
func packFrame(img image.Image, width, height int) ([]byte, error) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	var sourceImg image.Image
	if w == height && h == width {
		rotated := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				rotated.Set(y, w-x-1, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		sourceImg = rotated
	} else if w == width && h == height {
		sourceImg = img
	} else {
		return nil, fmt.Errorf("invalid image dimensions %dx%d: must be %dx%d or %dx%d",
			w, h, width, height, height, width)
	}

	palette := []color.Color{color.Black, color.White}
	palettedImg := image.NewPaletted(image.Rect(0, 0, width, height), palette)
	draw.Draw(palettedImg, palettedImg.Bounds(), sourceImg, sourceImg.Bounds().Min, draw.Src)

	lineWidth := (width + 7) / 8
	buf := make([]byte, frameSize(width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if palettedImg.ColorIndexAt(x, y) == 1 {
				buf[x/8+y*lineWidth] |= 1 << uint(7-x%8)
			}
		}
	}
	return buf, nil
}
