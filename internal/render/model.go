package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"rendercv-service/internal/domain"
)

// DefaultOutputDir is the directory, relative to the YAML file, that
// receives generated files when the document does not say otherwise.
const DefaultOutputDir = "rendercv_output"

// TypstFileName is the default Typst file name; the placeholder expands
// to the CV name.
const TypstFileName = placeholderSnake + "_CV.typ"

const (
	placeholderSnake      = "NAME_IN_SNAKE_CASE"
	placeholderLowerSnake = "NAME_IN_LOWER_SNAKE_CASE"
)

var nonNameChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

type cvDocument struct {
	CV struct {
		Name  string `yaml:"name"`
		Photo string `yaml:"photo"`
	} `yaml:"cv"`
	Settings struct {
		RenderCommand struct {
			TypstPath         string `yaml:"typst_path"`
			PDFPath           string `yaml:"pdf_path"`
			DontGenerateTypst bool   `yaml:"dont_generate_typst"`
			DontGeneratePDF   bool   `yaml:"dont_generate_pdf"`
		} `yaml:"render_command"`
	} `yaml:"rendercv_settings"`
}

// LoadModel reads the YAML document at yamlPath and resolves every path
// in the resulting Model to an absolute one. Relative paths in the
// document are taken relative to the YAML file and must stay inside its
// directory; paths in opts are used as given.
func LoadModel(yamlPath string, opts BuildOptions) (*Model, error) {
	abs, err := filepath.Abs(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("resolve yaml path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}

	var doc cvDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %s", yaml.FormatError(err, false, false))
	}

	baseDir := filepath.Dir(abs)
	snake := SnakeName(doc.CV.Name)
	rc := doc.Settings.RenderCommand

	m := &Model{
		YAMLPath:      abs,
		Name:          doc.CV.Name,
		TypstDisabled: rc.DontGenerateTypst,
		PDFDisabled:   rc.DontGeneratePDF,
	}
	if doc.CV.Photo != "" {
		if m.PhotoPath, err = confine(baseDir, doc.CV.Photo, "cv.photo"); err != nil {
			return nil, err
		}
	}
	if m.TypstPath, err = outputPath(baseDir, snake, opts.TypstPath, rc.TypstPath, "typst_path", ".typ"); err != nil {
		return nil, err
	}
	if m.PDFPath, err = outputPath(baseDir, snake, opts.PDFPath, rc.PDFPath, "pdf_path", ".pdf"); err != nil {
		return nil, err
	}

	return m, nil
}

// outputPath picks the override, then the document setting, then the
// default name under DefaultOutputDir.
func outputPath(baseDir, snake, override, fromDoc, key, ext string) (string, error) {
	if override != "" {
		return resolve(baseDir, expandName(override, snake)), nil
	}
	if fromDoc == "" {
		fromDoc = filepath.Join(DefaultOutputDir, strings.TrimSuffix(TypstFileName, ".typ")+ext)
	}
	return confine(baseDir, expandName(fromDoc, snake), key)
}

// confine resolves p against baseDir and rejects results outside it.
func confine(baseDir, p, key string) (string, error) {
	abs := resolve(baseDir, p)
	rel, err := filepath.Rel(baseDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s %q: %w", key, p, domain.ErrUnsafeDocumentPath)
	}
	return abs, nil
}

// SnakeName turns "John Doe" into "John_Doe". Characters that are not
// letters, digits, '_' or '-' are dropped.
func SnakeName(name string) string {
	s := strings.Join(strings.Fields(name), "_")
	s = nonNameChars.ReplaceAllString(s, "")
	if s == "" {
		return "CV"
	}
	return s
}

func expandName(p, snake string) string {
	p = strings.ReplaceAll(p, placeholderLowerSnake, strings.ToLower(snake))
	return strings.ReplaceAll(p, placeholderSnake, snake)
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
