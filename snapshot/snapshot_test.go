package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
  "Bustime": {
    "bustime-response": {
      "prd": [
        {"dstp": 0, "rtdd": "M", "rtdir": "NB", "des": "Main St", "prdctdn": "5", "dly": false},
        {"dstp": "7920", "rtdd": "80", "rtdir": "SB", "des": "Capitol", "prdctdn": "DUE"}
      ]
    }
  },
  "GeneratedAt": "2024-01-15T10:30:00+00:00"
}`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "next.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	snap, err := NewLoader(writeFile(t, validDoc)).Load()
	require.NoError(t, err)

	assert.True(t, snap.GeneratedAt.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
	require.Len(t, snap.Records, 2)
	assert.JSONEq(t, `"M"`, string(snap.Records[0]["rtdd"]))
	assert.JSONEq(t, `"7920"`, string(snap.Records[1]["dstp"]))
	_, hasDelay := snap.Records[1]["dly"]
	assert.False(t, hasDelay)
	assert.Empty(t, snap.Notices)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "next.json")).Load()
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestLoad_RereadsEveryCall(t *testing.T) {
	path := writeFile(t, validDoc)
	loader := NewLoader(path)

	_, err := loader.Load()
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = loader.Load()
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		given string
	}{
		{"not json", "{invalid json"},
		{"truncated write", validDoc[:len(validDoc)/2]},
		{"missing GeneratedAt", `{"Bustime": {"bustime-response": {"prd": []}}}`},
		{"bad GeneratedAt", `{"Bustime": {"bustime-response": {"prd": []}}, "GeneratedAt": "yesterday"}`},
		{"missing Bustime", `{"GeneratedAt": "2024-01-15T10:30:00Z"}`},
		{"missing bustime-response", `{"Bustime": {}, "GeneratedAt": "2024-01-15T10:30:00Z"}`},
		{"prd not an array", `{"Bustime": {"bustime-response": {"prd": 3}}, "GeneratedAt": "2024-01-15T10:30:00Z"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.given))
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestParse_NoPredictions(t *testing.T) {
	snap, err := Parse([]byte(`{
		"Bustime": {"bustime-response": {"error": [{"stpid": "10089", "msg": "No arrival times"}]}},
		"GeneratedAt": "2024-01-15T10:30:00.123456-06:00"
	}`))
	require.NoError(t, err)

	assert.NotNil(t, snap.Records)
	assert.Empty(t, snap.Records)
	assert.Equal(t, []string{"No arrival times"}, snap.Notices)
}
