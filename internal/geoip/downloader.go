// Package geoip handles downloading, updating, and reading MaxMind GeoLite2 databases.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	getter "github.com/hashicorp/go-getter"
	"github.com/rs/zerolog/log"
)

// EnsureDB checks if the GeoIP database exists at the specified path and if it is recent enough.
// If the file is missing or older than maxAge, it downloads a new copy from src, which may
// be any go-getter source (https, s3, file) and may carry a ?checksum= parameter.
func EnsureDB(ctx context.Context, path, src string, maxAge time.Duration) error {
	info, err := os.Stat(path)

	switch {
	case err == nil:
		if time.Since(info.ModTime()) < maxAge {
			log.Info().Str("path", path).Msg("GeoIP database is up to date")
			return nil
		}
		log.Info().Str("path", path).Msg("GeoIP database is outdated, updating...")
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading...")
	default:
		return err
	}

	return downloadFile(ctx, path, src)
}

// downloadFile fetches src into a temporary file next to path and renames it into place.
func downloadFile(ctx context.Context, path, src string) error {
	tmpPath := path + ".tmp"
	// go-getter resumes partial files, a stale one would corrupt the database
	_ = os.Remove(tmpPath)

	start := time.Now()
	if err := getter.GetFile(tmpPath, src, getter.WithContext(ctx)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("download %s: %w", src, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("GeoIP database downloaded")

	return nil
}
