package formatter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphvizRendererMissingBinary(t *testing.T) {
	dir := t.TempDir()
	r := &GraphvizRenderer{DotBinary: "pgxray-no-such-binary"}

	err := r.Render(context.Background(),
		filepath.Join(dir, "in.dot"), filepath.Join(dir, "out.png"))
	require.Error(t, err)

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.True(t, renderErr.Missing)
}

func TestRenderErrorMessage(t *testing.T) {
	missing := &RenderError{Missing: true, Err: errors.New("not found")}
	assert.Contains(t, missing.Error(), "rendering tool not found")

	failed := &RenderError{Err: errors.New("exit status 1"), Output: "syntax error"}
	assert.Contains(t, failed.Error(), "rendering failed")
	assert.Contains(t, failed.Error(), "syntax error")
}
