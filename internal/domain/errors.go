package domain

import "errors"

var (
	// ErrInvalidUpload signals a missing file, an empty filename or a
	// disallowed extension.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrPayloadTooLarge signals an upload above the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidYAMLSyntax signals that the upload could not be parsed as YAML.
	ErrInvalidYAMLSyntax = errors.New("invalid yaml syntax")
	// ErrInvalidCVSchema signals YAML that lacks the minimal cv structure.
	ErrInvalidCVSchema = errors.New("invalid cv schema")
	// ErrUnsafeDocumentPath signals a photo or output path in the document
	// that resolves outside the directory of the uploaded file.
	ErrUnsafeDocumentPath = errors.New("document path outside upload directory")

	// ErrGenerationDisabled signals that the renderer settings switched off
	// a stage the pipeline depends on.
	ErrGenerationDisabled = errors.New("generation disabled in settings")
	// ErrRenderTimeout signals that the external toolchain did not finish
	// within the configured deadline.
	ErrRenderTimeout = errors.New("render timed out")
	// ErrRenderBusy signals that no render slot became free in time.
	ErrRenderBusy = errors.New("no render slot available")

	// ErrNotifierDisabled signals missing messaging credentials.
	ErrNotifierDisabled = errors.New("notifier credentials not configured")

	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)
