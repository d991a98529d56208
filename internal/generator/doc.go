// Package generator implements the Generator side of the thumbnail
// pipeline: given a source path, a mime type, a target stored size and a
// crop flag, it produces a thumbnail and hands it to the disk store.
//
// Three concrete backends exist behind the same Generator interface:
//
//   - imageGenerator, the default: decodes with disintegration/imaging,
//     reads EXIF orientation with rwcarlsen/goexif, and writes the result
//     itself through internal/diskstore.
//   - vipsGenerator, an alternate "fast" backend backed by
//     davidbyttow/govips for decode-time shrinking on large sources.
//   - subprocessGenerator, used for video/ and application/pdf sources: it
//     shells out to an external helper binary that writes the thumbnail
//     file directly, the same argv contract the original cache used for
//     its thumbnaild-video/thumbnaild-pdf helpers. This dispatch boundary
//     is intentionally opaque; what the helper does internally is out of
//     scope here.
//
// Dispatch picks a backend by mime class: application/pdf and video/* go
// to subprocessGenerator, everything else is treated as image data.
package generator
