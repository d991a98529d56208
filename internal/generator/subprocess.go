package generator

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/diskstore"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
)

// subprocessGenerator dispatches generation to an external helper binary,
// passing it the same argv contract the original cache used:
//
//	<helper> <path> -w <width> -h <height> -o <output> [-c]
//
// The helper is responsible for writing the thumbnail file at <output>
// itself; this backend never decodes the result, matching the original
// cache's video/PDF path returning a null QImage alongside the path.
type subprocessGenerator struct {
	helperPath string
	kind       string // metrics label: "video" or "pdf"
}

// NewSubprocessGenerator returns a Generator that shells out to helperPath.
func NewSubprocessGenerator(helperPath string) Generator {
	kind := "video"
	return &subprocessGenerator{helperPath: helperPath, kind: kind}
}

func (g *subprocessGenerator) Generate(ctx context.Context, req Request, store *diskstore.Store, key cachekey.Key) (Result, error) {
	start := time.Now()
	kind := g.kind
	if req.MimeType == "application/pdf" {
		kind = "pdf"
	}

	outputPath, err := cachekey.DiskPath(store.Root(), key, true)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(kind, "error").Inc()
		return Result{}, fmt.Errorf("generator: resolve output path: %w", err)
	}

	args := []string{
		req.Path,
		"-w", strconv.Itoa(int(req.Size)),
		"-h", strconv.Itoa(int(req.Size)),
		"-o", outputPath,
	}
	if req.Crop {
		args = append(args, "-c")
	}

	cmd := exec.CommandContext(ctx, g.helperPath, args...)
	if err := cmd.Run(); err != nil {
		metrics.GenerationsTotal.WithLabelValues(kind, "error").Inc()
		log.Warn("could not generate %s thumbnail for %s: %v", kind, req.Path, err)
		return Result{}, fmt.Errorf("generator: helper %s failed: %w", g.helperPath, err)
	}

	// The wire contract is exit 0 *and* the output file existing; a helper
	// that exits clean without writing anything is still a failure.
	if _, err := os.Stat(outputPath); err != nil {
		metrics.GenerationsTotal.WithLabelValues(kind, "error").Inc()
		log.Warn("helper %s exited 0 but did not write %s: %v", g.helperPath, outputPath, err)
		return Result{}, fmt.Errorf("generator: helper %s produced no output: %w", g.helperPath, err)
	}

	metrics.GenerationsTotal.WithLabelValues(kind, "success").Inc()
	metrics.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	return Result{
		Path: outputPath,
		Size: image.Pt(int(req.Size), int(req.Size)),
	}, nil
}
