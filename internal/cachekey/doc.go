// Package cachekey derives the content-addressed key used to name on-disk
// thumbnail entries, and maps keys to their sharded path under a cache root.
//
// The key format is fixed by the on-disk layout contract (see DESIGN.md):
// hex(sha1(utf8(absolute source path))) + "-" + decimal(size) + ("F" if the
// request is not cropped). It is a fingerprint, not a security primitive;
// crypto/sha1 is used deliberately because the format is a wire/compat
// contract, not an algorithm choice.
package cachekey
