// Package upload decides whether an uploaded résumé file is acceptable
// before it is handed to the renderer.
package upload

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"rendercv-service/internal/domain"
)

// DefaultMaxBytes is the upload ceiling used when none is configured.
const DefaultMaxBytes = 2 << 20

// AllowedExtensions lists accepted file extensions, lower case, without dot.
var AllowedExtensions = []string{"yaml", "yml"}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Error is a rejection with a message meant for the client. It wraps one
// of the domain sentinel errors.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func reject(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validator checks upload metadata and content.
type Validator struct {
	MaxBytes int64
}

// NewValidator returns a validator with the given ceiling; non-positive
// values select DefaultMaxBytes.
func NewValidator(maxBytes int64) Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Validator{MaxBytes: maxBytes}
}

// CheckFile validates the claimed filename and size without reading content.
func (v Validator) CheckFile(filename string, size int64) error {
	if filename == "" {
		return reject(domain.ErrInvalidUpload, "No file selected")
	}
	if !AllowedFile(filename) {
		return reject(domain.ErrInvalidUpload, "Invalid file type. Allowed types: %s", strings.Join(AllowedExtensions, ", "))
	}
	if size > v.MaxBytes {
		return reject(domain.ErrPayloadTooLarge, "%s", TooLargeMessage(v.MaxBytes))
	}
	return nil
}

// CheckContent parses the YAML and enforces the minimal structure: a
// top-level mapping with a cv mapping that has a name key. The parsed
// document is returned on success.
func (v Validator) CheckContent(data []byte) (map[string]any, error) {
	if int64(len(data)) > v.MaxBytes {
		return nil, reject(domain.ErrPayloadTooLarge, "%s", TooLargeMessage(v.MaxBytes))
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, reject(domain.ErrInvalidYAMLSyntax, "Invalid YAML syntax: %s", yaml.FormatError(err, false, false))
	}

	root, ok := asMapping(doc)
	if !ok {
		return nil, reject(domain.ErrInvalidCVSchema, "Invalid YAML format: must be a dictionary")
	}
	cv, ok := asMapping(root["cv"])
	if !ok {
		return nil, reject(domain.ErrInvalidCVSchema, "Invalid CV format: missing 'cv' section")
	}
	if _, ok := cv["name"]; !ok {
		return nil, reject(domain.ErrInvalidCVSchema, "Invalid CV format: missing required 'name' field in cv section")
	}
	return root, nil
}

// AllowedFile reports whether name carries an allowed extension.
func AllowedFile(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	ext := strings.ToLower(name[i+1:])
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SecureFilename reduces a client-supplied name to a safe base name.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" || !AllowedFile(name) {
		return "cv.yaml"
	}
	return name
}

// TooLargeMessage is the client-facing text for uploads above maxBytes.
func TooLargeMessage(maxBytes int64) string {
	return "File is too large. Maximum size is " + humanSize(maxBytes)
}

func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func humanSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
