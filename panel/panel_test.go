package panel

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

var _ Sink = (*Simulator)(nil)

func testFrame() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 176, 264))
	for y := 0; y < 264; y++ {
		for x := 0; x < 176; x++ {
			img.SetBit(x, y, image1bit.On)
		}
	}
	img.SetBit(3, 5, image1bit.Off)
	return img
}

func TestSimulator_Display(t *testing.T) {
	var logs bytes.Buffer
	path := filepath.Join(t.TempDir(), "preview.png")
	sim := NewSimulator(path, slog.New(slog.NewTextHandler(&logs, nil)))

	require.NoError(t, sim.Init())
	require.NoError(t, sim.Clear(FillWhite))
	require.NoError(t, sim.Display(testFrame()))
	require.NoError(t, sim.Sleep())
	assert.Equal(t, 1, sim.Frames())

	got, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 176, 264), got.Bounds())

	gray := color.GrayModel.Convert(got.At(3, 5)).(color.Gray)
	assert.Equal(t, uint8(0), gray.Y)
	gray = color.GrayModel.Convert(got.At(4, 5)).(color.Gray)
	assert.Equal(t, uint8(255), gray.Y)

	assert.Contains(t, logs.String(), "simulated panel display")
	assert.Contains(t, logs.String(), "fill=255")
}

func TestSimulator_Scale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	sim := NewSimulator(path, nil)
	sim.Scale = 2

	require.NoError(t, sim.Display(testFrame()))

	got, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 352, 528), got.Bounds())
}

func TestSimulator_DisplayFailure(t *testing.T) {
	sim := NewSimulator(filepath.Join(t.TempDir(), "missing", "preview.png"), nil)
	assert.Error(t, sim.Display(testFrame()))
	assert.Equal(t, 0, sim.Frames())
}
