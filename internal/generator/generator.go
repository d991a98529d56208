package generator

import (
	"context"
	"image"
	"strings"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/diskstore"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/memory"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

var log = logging.Category("thumbnailer")

// Request describes one thumbnail to produce.
type Request struct {
	Path     string
	MimeType string
	Size     sizeladder.Size
	Crop     bool

	// FastMode requests the codec's fast decode path over fidelity,
	// e.g. a cheaper resampling filter. The default image backend uses
	// it for background/low-priority work; subprocess backends ignore
	// it, since the external helper controls its own decode path.
	FastMode bool
}

// Result is what a Generator produces. Image is nil when the backend
// wrote the thumbnail itself without handing pixels back (the subprocess
// backends). A pass-through result carries the decoded source image,
// unscaled, and no cache entry is written for it.
type Result struct {
	// Path is the on-disk cache path for the thumbnail, or the original
	// source path when PassThrough is true.
	Path string

	// Image holds decoded pixels when the backend produced them in
	// process. It is nil for subprocess-backed results.
	Image image.Image

	// Size is the intrinsic size of the produced thumbnail (or, for a
	// pass-through result, the source image's own size).
	Size image.Point

	// PassThrough is true when Path refers to the original source file
	// rather than a freshly written cache entry.
	PassThrough bool
}

// Generator produces a thumbnail for req and, unless it is a pass-through,
// writes it to store under key.
type Generator interface {
	Generate(ctx context.Context, req Request, store *diskstore.Store, key cachekey.Key) (Result, error)
}

// Dispatcher routes a Request to the backend appropriate for its mime
// type, mirroring the original cache's mime-based switch in
// generateThumbnail.
type Dispatcher struct {
	Image Generator
	Video Generator
	PDF   Generator
}

// NewDispatcher builds a Dispatcher with the default image backend and
// subprocess backends for video and PDF sources. mon may be nil, in which
// case the image backend never consults memory backpressure.
func NewDispatcher(videoHelper, pdfHelper string, mon *memory.Monitor) *Dispatcher {
	imgCfg := DefaultImageConfig()
	imgCfg.Memory = mon
	return &Dispatcher{
		Image: NewImageGenerator(imgCfg),
		Video: NewSubprocessGenerator(videoHelper),
		PDF:   NewSubprocessGenerator(pdfHelper),
	}
}

// NewFastDispatcher is like NewDispatcher but routes image sources through
// the libvips-backed decoder instead of the in-process imaging pipeline.
// The caller must have called InitVips first.
func NewFastDispatcher(videoHelper, pdfHelper string, mon *memory.Monitor) *Dispatcher {
	d := NewDispatcher(videoHelper, pdfHelper, mon)
	d.Image = NewVipsGenerator()
	return d
}

// Generate implements Generator by routing to the appropriate backend.
func (d *Dispatcher) Generate(ctx context.Context, req Request, store *diskstore.Store, key cachekey.Key) (Result, error) {
	switch {
	case req.MimeType == "application/pdf":
		return d.PDF.Generate(ctx, req, store, key)
	case strings.HasPrefix(req.MimeType, "video/"):
		return d.Video.Generate(ctx, req, store, key)
	default:
		return d.Image.Generate(ctx, req, store, key)
	}
}
