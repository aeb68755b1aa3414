// Package prediction maps raw BusTime records onto the rows the board shows.
package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/timschmolka/busboard/snapshot"
)

const (
	keyDistance    = "dstp"
	keyRoute       = "rtdd"
	keyDirection   = "rtdir"
	keyDestination = "des"
	keyMinutes     = "prdctdn"
	keyDelayed     = "dly"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

// FieldError reports the record and key that failed normalization.
type FieldError struct {
	Index int
	Name  string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("prediction %d: %s %q", e.Index, e.Err, e.Name)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Prediction is one upcoming arrival.
//
// DistanceFeet is passed through from upstream, where 0 stands for "more than
// about ten miles away" rather than "here". Use layout.DistanceLabel to
// display it.
type Prediction struct {
	DistanceFeet int
	Route        string
	Direction    string
	Destination  string
	Minutes      string
	Delayed      bool
}

// Normalize converts every record in snap, preserving upstream order. Any
// record with a missing or unusable required key fails the whole snapshot.
func Normalize(snap *snapshot.Snapshot) ([]Prediction, error) {
	preds := make([]Prediction, 0, len(snap.Records))
	for i, rec := range snap.Records {
		p, err := normalizeRecord(i, rec)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func normalizeRecord(i int, rec snapshot.RawPrediction) (Prediction, error) {
	var p Prediction
	var err error

	if p.DistanceFeet, err = intField(i, rec, keyDistance); err != nil {
		return p, err
	}
	if p.DistanceFeet < 0 {
		return p, &FieldError{Index: i, Name: keyDistance, Err: ErrInvalidField}
	}

	if p.Route, err = stringField(i, rec, keyRoute); err != nil {
		return p, err
	}
	if n := utf8.RuneCountInString(p.Route); n < 1 || n > 2 {
		return p, &FieldError{Index: i, Name: keyRoute, Err: ErrInvalidField}
	}

	if p.Direction, err = stringField(i, rec, keyDirection); err != nil {
		return p, err
	}
	if p.Destination, err = stringField(i, rec, keyDestination); err != nil {
		return p, err
	}
	if p.Minutes, err = stringField(i, rec, keyMinutes); err != nil {
		return p, err
	}

	if raw, ok := rec[keyDelayed]; ok {
		if err := json.Unmarshal(raw, &p.Delayed); err != nil {
			return p, &FieldError{Index: i, Name: keyDelayed, Err: ErrInvalidField}
		}
	}
	return p, nil
}

func lookup(i int, rec snapshot.RawPrediction, key string) (json.RawMessage, error) {
	raw, ok := rec[key]
	if !ok {
		return nil, &FieldError{Index: i, Name: key, Err: ErrMissingField}
	}
	return raw, nil
}

// intField accepts a JSON number or a numeric string.
func intField(i int, rec snapshot.RawPrediction, key string) (int, error) {
	raw, err := lookup(i, rec, key)
	if err != nil {
		return 0, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &FieldError{Index: i, Name: key, Err: ErrInvalidField}
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, &FieldError{Index: i, Name: key, Err: ErrInvalidField}
	}
	return v, nil
}

// stringField accepts a JSON string or a bare number.
func stringField(i int, rec snapshot.RawPrediction, key string) (string, error) {
	raw, err := lookup(i, rec, key)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", &FieldError{Index: i, Name: key, Err: ErrInvalidField}
}
