package cachekey

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

// Key is an opaque, stable fingerprint for a (source path, size, crop)
// triple. Everything above this package treats it as an opaque string.
type Key string

// Derive computes the cache key for a source path, stored size and crop
// flag. The path is used exactly as given; callers are responsible for
// passing an absolute path so that relative-path aliasing can't produce
// colliding or missed cache entries.
func Derive(path string, size sizeladder.Size, crop bool) Key {
	sum := sha1.Sum([]byte(path))
	s := hex.EncodeToString(sum[:]) + "-" + strconv.Itoa(int(size))
	if !crop {
		s += "F"
	}
	return Key(s)
}

// DiskPath returns the on-disk path for key under cacheRoot, sharded by the
// key's first two characters. When createShardDir is true the shard
// directory is created if missing; a pre-existing directory is not an
// error.
func DiskPath(cacheRoot string, key Key, createShardDir bool) (string, error) {
	ks := string(key)
	shard := ks
	if len(shard) > 2 {
		shard = shard[:2]
	}

	shardDir := filepath.Join(cacheRoot, shard)
	if createShardDir {
		if err := os.MkdirAll(shardDir, 0o755); err != nil {
			return "", err
		}
	}

	return filepath.Join(shardDir, ks), nil
}
