// Package render drives the external résumé toolchain (RenderCV for
// YAML -> Typst, the Typst compiler for Typst -> PDF/SVG) and normalizes
// what it produces.
package render

import "context"

// Format selects the output of a Typst compilation.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
)

// Model is what the pipeline needs to know about a résumé before handing
// it to the toolchain: where the intermediate and final files go, which
// stages are enabled and which photo the document references.
type Model struct {
	YAMLPath  string
	Name      string
	PhotoPath string
	TypstPath string
	PDFPath   string

	TypstDisabled bool
	PDFDisabled   bool
}

// BuildOptions override the output locations declared in the YAML
// settings. Empty fields keep the document's own settings.
type BuildOptions struct {
	PDFPath   string
	TypstPath string
}

// Toolchain is the narrow surface of the external renderer.
type Toolchain interface {
	// BuildModel reads the YAML document and resolves output locations.
	BuildModel(ctx context.Context, yamlPath string, opts BuildOptions) (*Model, error)
	// GenerateTypst writes the intermediate Typst document and returns its
	// path, or "" when the stage is disabled.
	GenerateTypst(ctx context.Context, m *Model) (string, error)
	// GeneratePDF compiles the Typst document to the model's PDF path and
	// returns it, or "" when the stage is disabled.
	GeneratePDF(ctx context.Context, m *Model, typstPath string) (string, error)
	// Compile compiles typstPath with rootDir as the project root. SVG
	// output yields one element per page in page order.
	Compile(ctx context.Context, typstPath, rootDir string, format Format) ([][]byte, error)
}
