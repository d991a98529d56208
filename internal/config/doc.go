// Package config centralizes environment-variable configuration loading for
// the thumbnailer, mirroring the original project's startup package: one
// LoadConfig call, defaults for everything, and logging of what was
// resolved so an operator can see why a deployment behaves the way it does.
//
// Supported environment variables:
//
//   - THUMBNAIL_CACHE_DIR: on-disk cache root (default: $XDG_CACHE_HOME or
//     ~/.cache, joined with org.nemomobile/thumbnails)
//   - NEMO_THUMBNAILER_CACHE_SIZE: retained-completions pixel-cost budget;
//     the original project's stable external override name, checked first.
//     THUMBNAIL_CACHE_COST is accepted as a fallback alias.
//     (default: loader.DefaultMaxCost)
//   - THUMBNAIL_SCREEN_WIDTH / THUMBNAIL_SCREEN_HEIGHT: the device's short
//     and long screen edges used to resolve ScreenShort/ScreenLong on the
//     size ladder (default: 540x960)
//   - THUMBNAIL_VIDEO_HELPER / THUMBNAIL_PDF_HELPER: paths to the
//     subprocess helpers used for video and PDF sources (default: "" which
//     disables that generator)
//   - THUMBNAIL_WORKERS: read by internal/workers, sizes cmd/thumbctl's
//     warm-tool submission concurrency
//   - MEMORY_LIMIT / MEMORY_RATIO / GOMEMLIMIT: read by internal/memory
//   - LOG_LEVEL / DEBUG: read by internal/logging
package config
