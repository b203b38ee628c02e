package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads KEY=value pairs from ./.env (or DANCEBREAK_ENV_FILE).
// Variables already present in the environment win.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("DANCEBREAK_ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
