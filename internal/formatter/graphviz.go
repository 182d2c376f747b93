package formatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// ImageRenderer converts a DOT file into a raster image. The production
// implementation shells out to graphviz; tests substitute a fake.
type ImageRenderer interface {
	Render(ctx context.Context, dotPath, imagePath string) error
}

// RenderError reports a failed image rendering attempt. Missing is set when
// the rendering tool is not installed at all.
type RenderError struct {
	Missing bool
	Output  string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Missing {
		return "rendering tool not found: " + e.Err.Error()
	}
	return fmt.Sprintf("rendering failed: %v (output: %s)", e.Err, e.Output)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// GraphvizRenderer renders diagrams by invoking the graphviz dot executable.
type GraphvizRenderer struct {
	// DotBinary overrides the executable name; defaults to "dot".
	DotBinary string

	Logger *slog.Logger
}

// Render runs dot -Tpng over the DOT file. A failure here never aborts the
// audit: the caller keeps the DOT text and logs the error.
func (r *GraphvizRenderer) Render(ctx context.Context, dotPath, imagePath string) error {
	bin := r.DotBinary
	if bin == "" {
		bin = "dot"
	}

	cmd := exec.CommandContext(ctx, bin, "-Tpng", "-Gdpi=300", dotPath, "-o", imagePath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		renderErr := &RenderError{Output: string(out), Err: err}
		if errors.Is(err, exec.ErrNotFound) {
			renderErr.Missing = true
		}
		return renderErr
	}
	return nil
}
