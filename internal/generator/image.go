package generator

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/diskstore"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/memory"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

// ImageConfig configures the default image backend.
type ImageConfig struct {
	// Filter is the resampling filter used for both the fit and the
	// fill (crop) scaling paths.
	Filter imaging.ResampleFilter

	// MaxSourcePixels bounds how large a source image this backend will
	// decode in full. Sources over the limit are rejected rather than
	// risking an OOM on a single request. Zero disables the check.
	MaxSourcePixels int

	// Memory, when set, is consulted before decoding so that generation
	// backs off under memory pressure the same way the rest of the
	// pipeline does.
	Memory *memory.Monitor
}

// DefaultImageConfig returns the backend configuration used when none is
// supplied explicitly.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		Filter:          imaging.Lanczos,
		MaxSourcePixels: 40_000_000,
	}
}

type imageGenerator struct {
	cfg ImageConfig
}

// NewImageGenerator returns the default in-process image backend.
func NewImageGenerator(cfg ImageConfig) Generator {
	return &imageGenerator{cfg: cfg}
}

func (g *imageGenerator) Generate(ctx context.Context, req Request, store *diskstore.Store, key cachekey.Key) (Result, error) {
	start := time.Now()

	if g.cfg.Memory != nil {
		g.cfg.Memory.WaitIfPaused()
	}

	orientation := readExifOrientation(req.Path)

	origW, origH, err := decodeDimensions(req.Path)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("image", "error").Inc()
		return Result{}, fmt.Errorf("generator: read dimensions: %w", err)
	}

	requested := int(req.Size)

	if shouldPassThrough(orientation, requested, origW, origH) {
		img, err := imaging.Open(req.Path)
		if err != nil {
			metrics.GenerationsTotal.WithLabelValues("image", "error").Inc()
			return Result{}, fmt.Errorf("generator: pass-through decode: %w", err)
		}
		metrics.PassThroughTotal.Inc()
		metrics.GenerationsTotal.WithLabelValues("image", "success").Inc()
		metrics.GenerationDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
		return Result{
			Path:        req.Path,
			Image:       img,
			Size:        image.Pt(origW, origH),
			PassThrough: true,
		}, nil
	}

	if g.cfg.MaxSourcePixels > 0 && origW*origH > g.cfg.MaxSourcePixels {
		metrics.GenerationsTotal.WithLabelValues("image", "error").Inc()
		return Result{}, fmt.Errorf("generator: source %s exceeds %d pixel limit", req.Path, g.cfg.MaxSourcePixels)
	}

	src, err := imaging.Open(req.Path)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("image", "error").Inc()
		return Result{}, fmt.Errorf("generator: decode: %w", err)
	}

	cw, ch := requested, requested
	if swapsDimensions(orientation) {
		cw, ch = ch, cw
	}

	filter := g.cfg.Filter
	if req.FastMode {
		// Go's stdlib/imaging decoders have no codec-level quality knob
		// like a JPEG reader's DCT scaling; the resampling filter is the
		// one speed/fidelity lever available, so fast mode swaps it for
		// the cheapest one instead.
		filter = imaging.Box
	}

	var thumb image.Image
	if req.Crop {
		thumb = imaging.Fill(src, cw, ch, imaging.Center, filter)
	} else {
		thumb = imaging.Fit(src, cw, ch, filter)
	}

	thumb = rotateForOrientation(orientation, thumb)

	path, err := store.Write(key, thumb)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("image", "error").Inc()
		return Result{}, fmt.Errorf("generator: write: %w", err)
	}

	metrics.GenerationsTotal.WithLabelValues("image", "success").Inc()
	metrics.GenerationDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())

	return Result{
		Path:  path,
		Image: thumb,
		Size:  thumb.Bounds().Size(),
	}, nil
}

// shouldPassThrough reports whether the source is already close enough to
// the requested size, and unrotated (or the request is larger than the
// largest ladder rung), that generating a smaller thumbnail isn't worth
// the write.
func shouldPassThrough(orientation, requested, origW, origH int) bool {
	if requested <= 0 {
		return false
	}
	withinTolerance := origW*9 < requested*10 || origH*9 < requested*10
	unrotatedOrLarge := orientation == 1 || requested > int(sizeladder.ExtraLarge)
	return unrotatedOrLarge && withinTolerance
}

// swapsDimensions reports whether orientation implies a 90-degree
// rotation, meaning the scaling box must be transposed before scaling and
// the image rotated back afterward.
func swapsDimensions(orientation int) bool {
	switch orientation {
	case 5, 6, 7, 8:
		return true
	default:
		return false
	}
}

// rotateForOrientation applies the EXIF orientation transform to img,
// after scaling, since rotating the smaller thumbnail is cheaper than
// rotating the source.
func rotateForOrientation(orientation int, img image.Image) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// readExifOrientation returns the EXIF orientation tag (1-8), defaulting
// to 1 (TopLeft, i.e. no transform) when the source has no EXIF data or
// isn't a format goexif understands.
func readExifOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil || x == nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil || tag == nil || tag.Count == 0 {
		return 1
	}

	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// ScaleExisting decodes the cached file at path and rescales it to size,
// used when a disk-store lookup hits at a neighboring ladder rung and the
// result has to be resampled to the exact box the caller asked for. The
// cached file is already orientation-corrected, so unlike Generate this
// never reads EXIF or rotates.
func ScaleExisting(path string, size sizeladder.Size, crop bool, filter imaging.ResampleFilter) (image.Image, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("generator: decode cached entry: %w", err)
	}

	w := int(size)
	if crop {
		return imaging.Fill(src, w, w, imaging.Center, filter), nil
	}
	return imaging.Fit(src, w, w, filter), nil
}

func decodeDimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
