package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"BUSBOARD_SNAPSHOT", "BUSBOARD_FONT_DIR", "BUSBOARD_SIMULATE", "BUSBOARD_PREVIEW", "BUSBOARD_TITLE", "BUSBOARD_TZ"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "next.json", cfg.SnapshotPath)
	assert.Equal(t, "fonts", cfg.FontDir)
	assert.False(t, cfg.Simulate)
	assert.Equal(t, "epd-preview.png", cfg.PreviewPath)
	assert.Equal(t, "Paterson", cfg.Title)
	assert.Equal(t, "America/Chicago", cfg.Location.String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BUSBOARD_SNAPSHOT", "/run/bus/next.json")
	t.Setenv("BUSBOARD_FONT_DIR", "/usr/share/fonts/dejavu")
	t.Setenv("BUSBOARD_SIMULATE", "true")
	t.Setenv("BUSBOARD_TITLE", "Park St")
	t.Setenv("BUSBOARD_TZ", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/run/bus/next.json", cfg.SnapshotPath)
	assert.Equal(t, "/usr/share/fonts/dejavu", cfg.FontDir)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, "Park St", cfg.Title)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
}

func TestLoad_UnknownZone(t *testing.T) {
	t.Setenv("BUSBOARD_TZ", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"", false},
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{" yes ", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"fake", false},
	}

	for _, test := range tests {
		t.Setenv("BUSBOARD_SIMULATE", test.value)
		assert.Equal(t, test.expected, getEnvBool("BUSBOARD_SIMULATE"), "value=%q", test.value)
	}
}
