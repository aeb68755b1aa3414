// Package snapshot reads the prediction snapshot written by the BusTime
// producer. The file is owned by another process and is re-read on every call.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

var (
	ErrMissingSnapshot   = errors.New("snapshot missing")
	ErrMalformedSnapshot = errors.New("snapshot malformed")
)

// RawPrediction is one upstream "prd" record. Values are left undecoded so
// that absent keys can be told apart from zero values.
type RawPrediction map[string]json.RawMessage

type Snapshot struct {
	GeneratedAt time.Time
	Records     []RawPrediction
	// Notices holds upstream error messages such as "No arrival times".
	Notices []string
}

type document struct {
	GeneratedAt *string `json:"GeneratedAt"`
	Bustime     *struct {
		Response *struct {
			Predictions []RawPrediction `json:"prd"`
			Errors      []struct {
				Msg string `json:"msg"`
			} `json:"error"`
		} `json:"bustime-response"`
	} `json:"Bustime"`
}

type Loader struct {
	Path string
}

func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

func (l *Loader) Load() (*Snapshot, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSnapshot, l.Path)
		}
		return nil, fmt.Errorf("read %s: %w", l.Path, err)
	}
	return Parse(data)
}

// Parse decodes a snapshot document. A producer caught mid-write yields
// truncated JSON, which is reported as ErrMalformedSnapshot like any other
// decode failure.
func Parse(data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	if doc.GeneratedAt == nil {
		return nil, fmt.Errorf("%w: GeneratedAt missing", ErrMalformedSnapshot)
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, *doc.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: GeneratedAt: %v", ErrMalformedSnapshot, err)
	}

	if doc.Bustime == nil || doc.Bustime.Response == nil {
		return nil, fmt.Errorf("%w: Bustime.bustime-response missing", ErrMalformedSnapshot)
	}

	snap := &Snapshot{
		GeneratedAt: generatedAt,
		Records:     doc.Bustime.Response.Predictions,
	}
	if snap.Records == nil {
		snap.Records = []RawPrediction{}
	}
	for _, e := range doc.Bustime.Response.Errors {
		if e.Msg != "" {
			snap.Notices = append(snap.Notices, e.Msg)
		}
	}
	return snap, nil
}
