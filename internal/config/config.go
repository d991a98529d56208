package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/loader"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

// Build-time variables, injected via -ldflags the same way the original
// project does.
var (
	Version   = "dev"
	Commit    = "unknown"
	GoVersion = runtime.Version()
)

// Config holds all resolved thumbnailer configuration.
type Config struct {
	CacheDir    string
	CacheCost   int
	Ladder      sizeladder.Ladder
	VideoHelper string
	PDFHelper   string
	FastDecode  bool
}

// LoadConfig resolves configuration from the environment, applying
// defaults and logging what it found.
func LoadConfig() (*Config, error) {
	cacheDir := getEnv("THUMBNAIL_CACHE_DIR", "")
	if cacheDir == "" {
		dir, err := defaultCacheDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve default cache dir: %w", err)
		}
		cacheDir = dir
	}

	// NEMO_THUMBNAILER_CACHE_SIZE is the stable external override named in
	// the original project's own environment; THUMBNAIL_CACHE_COST is kept
	// as a fallback alias for this tree's THUMBNAIL_-prefixed variables.
	cacheCost := getEnvInt("NEMO_THUMBNAILER_CACHE_SIZE", getEnvInt("THUMBNAIL_CACHE_COST", loader.DefaultMaxCost))

	screenWidth := getEnvInt("THUMBNAIL_SCREEN_WIDTH", 540)
	screenHeight := getEnvInt("THUMBNAIL_SCREEN_HEIGHT", 960)

	cfg := &Config{
		CacheDir:    cacheDir,
		CacheCost:   cacheCost,
		Ladder:      sizeladder.NewLadder(screenWidth, screenHeight),
		VideoHelper: getEnv("THUMBNAIL_VIDEO_HELPER", ""),
		PDFHelper:   getEnv("THUMBNAIL_PDF_HELPER", ""),
		FastDecode:  getEnv("THUMBNAIL_FAST_DECODE", "") == "true",
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create cache dir %s: %w", cfg.CacheDir, err)
	}

	logging.Info("thumbnailer configuration:")
	logging.Info("  cache dir:      %s", cfg.CacheDir)
	logging.Info("  cache cost:     %d", cfg.CacheCost)
	logging.Info("  screen ladder:  short=%d long=%d", cfg.Ladder.ScreenShort, cfg.Ladder.ScreenLong)
	if cfg.VideoHelper != "" {
		logging.Info("  video helper:   %s", cfg.VideoHelper)
	} else {
		logging.Info("  video helper:   disabled (set THUMBNAIL_VIDEO_HELPER)")
	}
	if cfg.PDFHelper != "" {
		logging.Info("  pdf helper:     %s", cfg.PDFHelper)
	} else {
		logging.Info("  pdf helper:     disabled (set THUMBNAIL_PDF_HELPER)")
	}
	logging.Info("  fast decode:    %v (libvips)", cfg.FastDecode)

	return cfg, nil
}

// defaultCacheDir mirrors the XDG base directory spec's cache
// resolution: $XDG_CACHE_HOME if set, else ~/.cache, joined with the
// original implementation's well-known subdirectory.
func defaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "org.nemomobile", "thumbnails"), nil
}

// StartupBanner logs version/build info the way LogServerStarted does in
// the original project, without the HTTP-route-specific parts.
func StartupBanner(startupDuration time.Duration) {
	logging.Info("------------------------------------------------------------")
	logging.Info("nemo-qml-plugin-thumbnailer")
	logging.Info("  version: %s", Version)
	logging.Info("  commit:  %s", Commit)
	logging.Info("  go:      %s", GoVersion)
	logging.Info("  startup: %v", startupDuration)
	logging.Info("------------------------------------------------------------")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Warn("config: invalid integer for %s: %q, using default %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}
