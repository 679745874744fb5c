package layout

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/gosom/vectorprint/internal/apperrors"
)

// Converter is the external, deterministic SVG->PDF converter,
// treated as a pure function from normalized SVG bytes to PDF bytes.
// It is an external collaborator outside this package; ExecConverter
// below is the process-spawning adapter used to invoke it.
type Converter interface {
	Convert(ctx context.Context, normalizedSVG []byte) ([]byte, error)
}

// ExecConverter shells out to an external binary that reads SVG on
// stdin and writes PDF on stdout. SVG rasterization to PDF pulls in
// cairo/skia-backed bindings, so os/exec against a purpose-built
// external binary is the integration point rather than a Go library.
type ExecConverter struct {
	BinaryPath string
}

func NewExecConverter(binaryPath string) *ExecConverter {
	return &ExecConverter{BinaryPath: binaryPath}
}

func (c *ExecConverter) Convert(ctx context.Context, normalizedSVG []byte) ([]byte, error) {
	if c.BinaryPath == "" {
		return nil, apperrors.New(apperrors.KindConverterMissing, "svg converter binary not configured")
	}

	cmd := exec.CommandContext(ctx, c.BinaryPath)
	cmd.Stdin = bytes.NewReader(normalizedSVG)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConverterMissing, fmt.Sprintf("converter failed: %s", stderr.String()), err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		return nil, apperrors.New(apperrors.KindBadPDFHeader, "converter output missing %PDF- header")
	}
	return out.Bytes(), nil
}
