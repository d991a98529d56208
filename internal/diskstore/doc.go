// Package diskstore implements the content-addressed on-disk thumbnail
// store: looking up an existing cached thumbnail by key and validating it
// against the source file's modification time, and writing a freshly
// generated thumbnail back to its sharded path.
//
// A cached entry is valid only while its own mtime is at least as recent
// as the source file's mtime; any other relationship (missing file, stat
// failure, stale mtime) is a miss. This package does not decide *which*
// key to look up — that is internal/sizeladder and internal/cachekey's
// job — it only knows how to read and write entries once a key is given.
package diskstore
