package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultRenderCVBinary = "rendercv"
	DefaultTypstBinary    = "typst"
)

// CLIToolchain implements Toolchain on top of the rendercv and typst
// command line tools.
type CLIToolchain struct {
	RenderCVPath string
	TypstPath    string
	Runner       CommandRunner
}

// NewCLIToolchain returns a toolchain running the given binaries through
// ExecRunner. Empty paths select the binaries on PATH.
func NewCLIToolchain(rendercvPath, typstPath string) *CLIToolchain {
	if rendercvPath == "" {
		rendercvPath = DefaultRenderCVBinary
	}
	if typstPath == "" {
		typstPath = DefaultTypstBinary
	}
	return &CLIToolchain{
		RenderCVPath: rendercvPath,
		TypstPath:    typstPath,
		Runner:       ExecRunner{},
	}
}

// Check verifies that both binaries can be started.
func (t *CLIToolchain) Check(ctx context.Context) error {
	if err := t.run(ctx, "", t.RenderCVPath, "--help"); err != nil {
		return err
	}
	return t.run(ctx, "", t.TypstPath, "--version")
}

func (t *CLIToolchain) BuildModel(ctx context.Context, yamlPath string, opts BuildOptions) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadModel(yamlPath, opts)
}

func (t *CLIToolchain) GenerateTypst(ctx context.Context, m *Model) (string, error) {
	if m.TypstDisabled {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(m.TypstPath), 0o755); err != nil {
		return "", fmt.Errorf("create typst dir: %w", err)
	}

	args := []string{
		"render", m.YAMLPath,
		"--typst-path", m.TypstPath,
		"--dont-generate-pdf",
		"--dont-generate-png",
		"--dont-generate-markdown",
		"--dont-generate-html",
	}
	if err := t.run(ctx, filepath.Dir(m.YAMLPath), t.RenderCVPath, args...); err != nil {
		return "", err
	}
	if _, err := os.Stat(m.TypstPath); err != nil {
		return "", fmt.Errorf("rendercv produced no typst file at %s: %w", m.TypstPath, err)
	}
	return m.TypstPath, nil
}

func (t *CLIToolchain) GeneratePDF(ctx context.Context, m *Model, typstPath string) (string, error) {
	if m.PDFDisabled {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(m.PDFPath), 0o755); err != nil {
		return "", fmt.Errorf("create pdf dir: %w", err)
	}
	root := filepath.Dir(typstPath)
	if err := t.run(ctx, root, t.TypstPath, "compile", "--root", root, "--format", string(FormatPDF), typstPath, m.PDFPath); err != nil {
		return "", err
	}
	return m.PDFPath, nil
}

func (t *CLIToolchain) Compile(ctx context.Context, typstPath, rootDir string, format Format) ([][]byte, error) {
	if format != FormatSVG && format != FormatPDF {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	scratch, err := os.MkdirTemp(filepath.Dir(typstPath), ".compile-*")
	if err != nil {
		return nil, fmt.Errorf("create compile dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	out := filepath.Join(scratch, "document.pdf")
	if format == FormatSVG {
		out = filepath.Join(scratch, "page-{p}.svg")
	}
	if err := t.run(ctx, rootDir, t.TypstPath, "compile", "--root", rootDir, "--format", string(format), typstPath, out); err != nil {
		return nil, err
	}

	if format == FormatPDF {
		data, err := os.ReadFile(out)
		if err != nil {
			return nil, fmt.Errorf("read compiled pdf: %w", err)
		}
		return [][]byte{data}, nil
	}
	return readPages(scratch)
}

// readPages collects page-1.svg, page-2.svg, ... until the first gap.
func readPages(dir string) ([][]byte, error) {
	var pages [][]byte
	for n := 1; ; n++ {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("page-%d.svg", n)))
		if errors.Is(err, os.ErrNotExist) {
			return pages, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read svg page %d: %w", n, err)
		}
		pages = append(pages, data)
	}
}

func (t *CLIToolchain) run(ctx context.Context, dir, name string, args ...string) error {
	_, stderr, err := t.Runner.Run(ctx, dir, name, args...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", filepath.Base(name), ctxErr)
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%s: %s: %w", filepath.Base(name), msg, err)
	}
	return fmt.Errorf("%s: %w", filepath.Base(name), err)
}
