package diskstore

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"time"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
)

var log = logging.Category("thumbnailer")

// JPEGQuality is the encode quality used for thumbnails without an alpha
// channel. The original cache used Qt's binary low/high JPEG quality
// split; this module just picks a single good-enough constant.
const JPEGQuality = 85

// Store reads and writes cache entries under a sharded directory tree
// rooted at a single cache directory.
type Store struct {
	root string
}

// New returns a Store rooted at root. The directory is created lazily on
// first write, matching the original cache's "create on demand" behavior
// for shard subdirectories.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Lookup returns the on-disk path for key if a cached entry exists and its
// mtime is at least as recent as sourceModTime. A missing file, a stat
// error, or a stale entry are all reported as ok=false; diskstore never
// distinguishes them for the caller, matching the original cache's
// treatment of "not a usable hit" as a single outcome.
func (s *Store) Lookup(key cachekey.Key, sourceModTime time.Time) (path string, ok bool) {
	path, err := cachekey.DiskPath(s.root, key, false)
	if err != nil {
		return "", false
	}

	info, err := os.Stat(path)
	if err != nil {
		metrics.CacheMisses.Inc()
		return "", false
	}

	if info.ModTime().Before(sourceModTime) {
		metrics.CacheMisses.Inc()
		return "", false
	}

	metrics.CacheHits.Inc()
	return path, true
}

// Write encodes img and stores it at the path derived from key, creating
// the shard directory if necessary. Images with an alpha channel are
// encoded as PNG; fully opaque images are encoded as JPEG, mirroring the
// original cache's "PNG if hasAlphaChannel else JPEG" choice.
func (s *Store) Write(key cachekey.Key, img image.Image) (string, error) {
	path, err := cachekey.DiskPath(s.root, key, true)
	if err != nil {
		metrics.DiskWriteErrors.Inc()
		return "", fmt.Errorf("diskstore: resolve path: %w", err)
	}

	var buf bytes.Buffer
	if hasAlpha(img) {
		if err := png.Encode(&buf, img); err != nil {
			metrics.DiskWriteErrors.Inc()
			return "", fmt.Errorf("diskstore: encode png: %w", err)
		}
	} else {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			metrics.DiskWriteErrors.Inc()
			return "", fmt.Errorf("diskstore: encode jpeg: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		metrics.DiskWriteErrors.Inc()
		return "", fmt.Errorf("diskstore: write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		metrics.DiskWriteErrors.Inc()
		return "", fmt.Errorf("diskstore: rename into place: %w", err)
	}

	log.Debug("wrote cache entry %s", path)
	return path, nil
}

// hasAlpha reports whether img contains any non-opaque pixel. Images whose
// color model is already alpha-free (e.g. YCbCr from a JPEG source) are
// treated as opaque without a full scan.
func hasAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case nil:
		return false
	}

	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xffff {
				return true
			}
		}
	}
	return false
}
