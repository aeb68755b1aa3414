// Package config reads process settings from the environment once at startup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all settings for the board process
type Config struct {
	// Input
	SnapshotPath string
	FontDir      string

	// Display
	Simulate    bool
	PreviewPath string
	Title       string
	Location    *time.Location
}

// Load reads configuration from an optional .env file and the environment.
// Variables already set in the environment win over the .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	tz := getEnv("BUSBOARD_TZ", "America/Chicago")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("BUSBOARD_TZ %q: %w", tz, err)
	}

	return &Config{
		SnapshotPath: getEnv("BUSBOARD_SNAPSHOT", "next.json"),
		FontDir:      getEnv("BUSBOARD_FONT_DIR", "fonts"),

		Simulate:    getEnvBool("BUSBOARD_SIMULATE"),
		PreviewPath: getEnv("BUSBOARD_PREVIEW", "epd-preview.png"),
		Title:       getEnv("BUSBOARD_TITLE", "Paterson"),
		Location:    loc,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool is false unless the variable holds a recognised true value.
func getEnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
