package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"rendercv-service/internal/config"
	"rendercv-service/internal/domain"
	"rendercv-service/internal/infra/cache"
	"rendercv-service/internal/infra/logging"
	"rendercv-service/internal/infra/renderpool"
	"rendercv-service/internal/notify"
	"rendercv-service/internal/render"
	"rendercv-service/internal/upload"
	"rendercv-service/internal/workspace"
)

const downloadLayout = "20060102_150405"

// Deps are the collaborators of RenderService. Pool, Cache and Notifier
// may be nil.
type Deps struct {
	Config   config.Config
	Pipeline *render.Pipeline
	Pool     *renderpool.Pool
	Cache    *cache.PDFCache
	Notifier notify.Notifier
}

// RenderService bundles configuration and dependencies for CV rendering.
type RenderService struct {
	cfg       config.Config
	pipeline  *render.Pipeline
	pool      *renderpool.Pool
	cache     *cache.PDFCache
	notifier  notify.Notifier
	validator upload.Validator
	now       func() time.Time
}

func NewRenderService(d Deps) *RenderService {
	return &RenderService{
		cfg:       d.Config,
		pipeline:  d.Pipeline,
		pool:      d.Pool,
		cache:     d.Cache,
		notifier:  d.Notifier,
		validator: upload.NewValidator(int64(d.Config.Limits.MaxUploadBytes)),
		now:       time.Now,
	}
}

type uploaded struct {
	name string
	data []byte
}

// HandleRenderCV renders the uploaded YAML to PDF and streams it back as
// an attachment.
func (s *RenderService) HandleRenderCV(c *fiber.Ctx) error {
	up, err := s.readUpload(c)
	if err != nil {
		return err
	}
	requestID := requestIDOf(c)
	filename := fmt.Sprintf("cv_%s.pdf", s.now().Format(downloadLayout))

	key := cache.Key(up.data)
	if pdf := s.cache.Get(c.UserContext(), key); pdf != nil {
		return s.sendPDF(c, filename, pdf)
	}

	job, err := workspace.NewJob(s.cfg.Render.WorkDir)
	if err != nil {
		return internalError("Failed to create render job", err)
	}
	defer job.Cleanup()

	yamlPath, err := job.WriteInput(up.name, up.data)
	if err != nil {
		return internalError("Failed to store upload", err)
	}
	pdfPath := job.OutputPath(s.cfg.Render.OutputPDFName)

	err = s.withSlot(c.UserContext(), func(ctx context.Context) error {
		produced, _, err := s.pipeline.RenderToPDFAndSVG(ctx, yamlPath, render.Options{
			PDFPath:   pdfPath,
			TypstPath: job.OutputPath(render.TypstFileName),
			SVGDir:    job.OutputDir,
		})
		pdfPath = produced
		return err
	})
	if err != nil {
		return renderError(err, requestID)
	}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return internalError("Failed to read rendered PDF", err)
	}
	if len(pdf) == 0 {
		return internalError("Rendered PDF is empty", errors.New(pdfPath))
	}
	s.cache.Set(c.UserContext(), key, pdf)

	logging.Info("CV rendered", "upload", up.name, "bytes", len(pdf), "request_id", requestID)
	return s.sendPDF(c, filename, pdf)
}

// HandleRenderSVG renders the uploaded YAML to SVG pages and returns them
// inline as JSON.
func (s *RenderService) HandleRenderSVG(c *fiber.Ctx) error {
	up, err := s.readUpload(c)
	if err != nil {
		return err
	}
	requestID := requestIDOf(c)

	job, err := workspace.NewJob(s.cfg.Render.WorkDir)
	if err != nil {
		return internalError("Failed to create render job", err)
	}
	defer job.Cleanup()

	yamlPath, err := job.WriteInput(up.name, up.data)
	if err != nil {
		return internalError("Failed to store upload", err)
	}

	var paths []string
	err = s.withSlot(c.UserContext(), func(ctx context.Context) error {
		var err error
		paths, err = s.pipeline.RenderToSVGOnly(ctx, yamlPath, job.OutputDir)
		return err
	})
	if err != nil {
		return renderError(err, requestID)
	}

	resp := domain.SVGResponse{SVGs: make([]domain.SVGPage, 0, len(paths))}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return internalError("Failed to read rendered SVG", err)
		}
		resp.SVGs = append(resp.SVGs, domain.SVGPage{Filename: filepath.Base(p), Content: string(data)})
	}

	logging.Info("CV rendered as SVG", "upload", up.name, "pages", len(resp.SVGs), "request_id", requestID)
	return c.JSON(resp)
}

// HandleStats exposes the render pool (capacity / idle / in_use).
func (s *RenderService) HandleStats(c *fiber.Ctx) error {
	timeoutSecs := int(s.cfg.Render.Timeout / time.Second)
	if s.pool == nil {
		return c.JSON(fiber.Map{
			"enabled":        false,
			"capacity":       0,
			"idle":           0,
			"in_use":         0,
			"pool_size_conf": s.cfg.Render.PoolSize,
			"timeout_secs":   timeoutSecs,
		})
	}

	st := s.pool.Stats()
	return c.JSON(fiber.Map{
		"enabled":        st.Enabled,
		"capacity":       st.Capacity,
		"idle":           st.Idle,
		"in_use":         st.InUse,
		"waiting":        st.Waiting,
		"completed":      st.Completed,
		"failed":         st.Failed,
		"pool_size_conf": s.cfg.Render.PoolSize,
		"timeout_secs":   timeoutSecs,
	})
}

// readUpload extracts and validates the multipart "file" field.
func (s *RenderService) readUpload(c *fiber.Ctx) (*uploaded, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		// A part named "file" without a filename is parsed as a plain value.
		if form, ferr := c.MultipartForm(); ferr == nil {
			if _, ok := form.Value["file"]; ok {
				return nil, fiber.NewError(fiber.StatusBadRequest, "No file selected")
			}
		}
		return nil, fiber.NewError(fiber.StatusBadRequest, "No file provided")
	}
	if err := s.validator.CheckFile(fh.Filename, fh.Size); err != nil {
		return nil, uploadError(err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, internalError("Failed to open upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.validator.MaxBytes+1))
	if err != nil {
		return nil, internalError("Failed to read upload", err)
	}

	if _, err := s.validator.CheckContent(data); err != nil {
		return nil, uploadError(err)
	}
	return &uploaded{name: upload.SecureFilename(fh.Filename), data: data}, nil
}

// withSlot runs fn under the render timeout while holding a pool slot.
func (s *RenderService) withSlot(parent context.Context, fn func(ctx context.Context) error) error {
	if s.pool != nil {
		acquireCtx, cancel := withTimeout(parent, s.cfg.Render.AcquireTimeout)
		slot, err := s.pool.Acquire(acquireCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrRenderBusy, err)
		}
		var renderErr error
		defer func() { s.pool.Release(slot, renderErr) }()

		ctx, cancelRender := withTimeout(parent, s.cfg.Render.Timeout)
		defer cancelRender()
		renderErr = fn(ctx)
		return renderErr
	}

	ctx, cancel := withTimeout(parent, s.cfg.Render.Timeout)
	defer cancel()
	return fn(ctx)
}

// withTimeout treats a non-positive d as no deadline.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// sendPDF writes the attachment and hands a copy to the notifier.
func (s *RenderService) sendPDF(c *fiber.Ctx, filename string, pdf []byte) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Attachment(filename)
	if err := c.Send(pdf); err != nil {
		return err
	}
	if s.notifier != nil {
		notify.Dispatch(s.notifier, s.cfg.Notify.Timeout, filename, pdf)
	}
	return nil
}

func requestIDOf(c *fiber.Ctx) string {
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
