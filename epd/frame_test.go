package epd

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func whiteImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func TestPackFrame_White(t *testing.T) {
	buf, err := packFrame(whiteImage(Width, Height), Width, Height)
	require.NoError(t, err)
	require.Len(t, buf, Width/8*Height)

	for i, b := range buf {
		if b != 0xFF {
			t.Fatalf("byte %d = %#x, want 0xff", i, b)
		}
	}
}

func TestPackFrame_BitOrder(t *testing.T) {
	img := whiteImage(Width, Height)
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(9, 0, color.Gray{Y: 0})
	img.SetGray(175, 1, color.Gray{Y: 0})

	buf, err := packFrame(img, Width, Height)
	require.NoError(t, err)

	lineWidth := Width / 8
	assert.Equal(t, byte(0x7F), buf[0])
	assert.Equal(t, byte(0xBF), buf[1])
	assert.Equal(t, byte(0xFE), buf[lineWidth+lineWidth-1])
	assert.Equal(t, byte(0xFF), buf[lineWidth])
}

func TestPackFrame_OneBitCanvas(t *testing.T) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			img.SetBit(x, y, image1bit.On)
		}
	}
	img.SetBit(8, 2, image1bit.Off)

	buf, err := packFrame(img, Width, Height)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), buf[1+2*Width/8])
}

func TestPackFrame_Landscape(t *testing.T) {
	img := whiteImage(Height, Width)
	// Top-left of the landscape image lands in the bottom-left corner.
	img.SetGray(0, 0, color.Gray{Y: 0})

	buf, err := packFrame(img, Width, Height)
	require.NoError(t, err)

	lineWidth := Width / 8
	assert.Equal(t, byte(0x7F), buf[(Height-1)*lineWidth])
	assert.Equal(t, byte(0xFF), buf[0])
}

func TestPackFrame_InvalidSize(t *testing.T) {
	_, err := packFrame(whiteImage(122, 250), Width, Height)
	assert.Error(t, err)
}

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 22*264, frameSize(176, 264))
	assert.Equal(t, 16*250, frameSize(122, 250))
}
