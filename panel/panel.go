// Package panel defines the display sink the refresh loop paints through and
// a simulator that writes frames to disk instead of driving hardware.
package panel

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

const (
	FillBlack uint8 = 0x00
	FillWhite uint8 = 0xFF
)

// Sink is an e-paper panel. Init and Sleep bracket every refresh; Close
// releases the device when the process stops.
type Sink interface {
	Init() error
	Clear(fill uint8) error
	Display(img image.Image) error
	Sleep() error
	Close() error
}

// Simulator stands in for the panel. Every displayed frame overwrites the PNG
// at Path.
type Simulator struct {
	Path string
	// Scale enlarges the preview; values below 2 keep the native size.
	Scale  int
	logger *slog.Logger
	frames int
}

func NewSimulator(path string, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{Path: path, Scale: 1, logger: logger}
}

func (s *Simulator) Init() error {
	s.logger.Info("simulated panel init")
	return nil
}

func (s *Simulator) Clear(fill uint8) error {
	s.logger.Info("simulated panel clear", "fill", fill)
	return nil
}

func (s *Simulator) Display(img image.Image) error {
	out := img
	if s.Scale > 1 {
		b := img.Bounds()
		out = imaging.Resize(img, b.Dx()*s.Scale, b.Dy()*s.Scale, imaging.NearestNeighbor)
	}
	if err := imaging.Save(out, s.Path); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	s.frames++
	s.logger.Info("simulated panel display", "path", s.Path, "frame", s.frames)
	return nil
}

func (s *Simulator) Sleep() error {
	s.logger.Info("simulated panel sleep")
	return nil
}

func (s *Simulator) Close() error {
	s.logger.Info("simulated panel closed", "frames", s.frames)
	return nil
}

// Frames reports how many frames have been written.
func (s *Simulator) Frames() int {
	return s.frames
}
