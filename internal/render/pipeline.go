package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rendercv-service/internal/domain"
	"rendercv-service/internal/infra/logging"
)

// Options override where a render writes. Empty fields fall back to the
// document settings (PDF, Typst) or to DefaultOutputDir next to the YAML
// file (SVG).
type Options struct {
	PDFPath   string
	TypstPath string
	SVGDir    string
}

// Pipeline sequences the toolchain stages for one YAML document and
// normalizes the SVG pages it produces.
type Pipeline struct {
	toolchain Toolchain
}

// NewPipeline returns a Pipeline driving tc.
func NewPipeline(tc Toolchain) *Pipeline {
	return &Pipeline{toolchain: tc}
}

// RenderToPDFAndSVG produces the PDF and the SVG pages of the document at
// yamlPath. SVG paths are returned in page order.
func (p *Pipeline) RenderToPDFAndSVG(ctx context.Context, yamlPath string, opts Options) (string, []string, error) {
	start := time.Now()

	m, typstPath, err := p.prepare(ctx, yamlPath, BuildOptions{PDFPath: opts.PDFPath, TypstPath: opts.TypstPath})
	if err != nil {
		return "", nil, err
	}

	pdfPath, err := p.toolchain.GeneratePDF(ctx, m, typstPath)
	if err != nil {
		return "", nil, classify(ctx, "generate pdf", err)
	}
	if pdfPath == "" {
		return "", nil, fmt.Errorf("pdf stage: %w", domain.ErrGenerationDisabled)
	}

	svgs, err := p.renderSVG(ctx, m, typstPath, opts.SVGDir)
	if err != nil {
		return "", nil, err
	}

	logging.Info("Rendered PDF and SVG", "yaml", filepath.Base(yamlPath), "pages", len(svgs), "duration", time.Since(start).String())
	return pdfPath, svgs, nil
}

// RenderToSVGOnly is RenderToPDFAndSVG without the PDF stage.
func (p *Pipeline) RenderToSVGOnly(ctx context.Context, yamlPath, svgDir string) ([]string, error) {
	start := time.Now()

	m, typstPath, err := p.prepare(ctx, yamlPath, BuildOptions{})
	if err != nil {
		return nil, err
	}
	svgs, err := p.renderSVG(ctx, m, typstPath, svgDir)
	if err != nil {
		return nil, err
	}

	logging.Info("Rendered SVG", "yaml", filepath.Base(yamlPath), "pages", len(svgs), "duration", time.Since(start).String())
	return svgs, nil
}

func (p *Pipeline) prepare(ctx context.Context, yamlPath string, opts BuildOptions) (*Model, string, error) {
	m, err := p.toolchain.BuildModel(ctx, yamlPath, opts)
	if err != nil {
		return nil, "", classify(ctx, "build model", err)
	}
	typstPath, err := p.toolchain.GenerateTypst(ctx, m)
	if err != nil {
		return nil, "", classify(ctx, "generate typst", err)
	}
	if typstPath == "" {
		return nil, "", fmt.Errorf("typst stage: %w", domain.ErrGenerationDisabled)
	}
	// Both the PDF and the SVG compile resolve the photo from here.
	if err := copyPhoto(m.PhotoPath, filepath.Dir(typstPath)); err != nil {
		return nil, "", err
	}
	return m, typstPath, nil
}

func (p *Pipeline) renderSVG(ctx context.Context, m *Model, typstPath, svgDir string) ([]string, error) {
	if svgDir == "" {
		svgDir = filepath.Join(filepath.Dir(m.YAMLPath), DefaultOutputDir)
	}
	if err := os.MkdirAll(svgDir, 0o755); err != nil {
		return nil, fmt.Errorf("create svg dir: %w", err)
	}
	pages, err := p.toolchain.Compile(ctx, typstPath, filepath.Dir(typstPath), FormatSVG)
	if err != nil {
		return nil, classify(ctx, "compile svg", err)
	}

	stem := strings.TrimSuffix(filepath.Base(typstPath), filepath.Ext(typstPath))
	return writePages(svgDir, stem, pages)
}

// writePages stores page n as {stem}_{n}.svg, or as {stem}.svg when the
// document has a single page.
func writePages(dir, stem string, pages [][]byte) ([]string, error) {
	paths := make([]string, 0, len(pages))
	for i, page := range pages {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.svg", stem, i+1))
		if err := os.WriteFile(path, page, 0o644); err != nil {
			return nil, fmt.Errorf("write svg page %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	if len(paths) == 1 {
		single := filepath.Join(dir, stem+".svg")
		if err := os.Rename(paths[0], single); err != nil {
			return nil, fmt.Errorf("rename single svg page: %w", err)
		}
		paths[0] = single
	}
	return paths, nil
}

// copyPhoto places the referenced photo next to the Typst document so the
// compiler can resolve it relative to the project root.
func copyPhoto(photo, dir string) error {
	if photo == "" {
		return nil
	}
	dst := filepath.Join(dir, filepath.Base(photo))
	if filepath.Clean(photo) == filepath.Clean(dst) {
		return nil
	}

	src, err := os.Open(photo)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create photo copy: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("copy photo: %w", err)
	}
	return out.Close()
}

func classify(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", stage, domain.ErrRenderTimeout, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
