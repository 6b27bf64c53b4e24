package env

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Load reads KEY=VALUE pairs from the given files (".env" when none are
// given) into the process environment. Variables already set win, so
// viper's AutomaticEnv still sees the operator's values first.
func Load(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("file", f).Msg("no env file found, skipping")
				continue
			}
			log.Error().Err(err).Str("file", f).Msg("error loading env file")
		}
	}
}
