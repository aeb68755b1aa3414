package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	FontFile = "DejaVuSansMono-Bold.ttf"

	titleSize    = 22
	bodySize     = 18
	subtitleSize = 14
)

var ErrFontLoad = errors.New("font load failed")

type Fonts struct {
	Title    font.Face
	Body     font.Face
	Subtitle font.Face
}

// LoadFonts reads FontFile from dir and builds the three faces the board uses.
func LoadFonts(dir string) (Fonts, error) {
	path := filepath.Join(dir, FontFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Fonts{}, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	fonts, err := ParseFonts(data)
	if err != nil {
		return Fonts{}, fmt.Errorf("%s: %w", path, err)
	}
	return fonts, nil
}

func ParseFonts(ttf []byte) (Fonts, error) {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return Fonts{}, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}
	return Fonts{
		Title:    newFace(f, titleSize),
		Body:     newFace(f, bodySize),
		Subtitle: newFace(f, subtitleSize),
	}, nil
}

// Sizes are in pixels: at 72 DPI one point is one device pixel.
func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
