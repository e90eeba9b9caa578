package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"rendercv-service/internal/config"
	"rendercv-service/internal/render"
)

const validCV = "cv:\n  name: John Doe\n  sections:\n    summary:\n      - Go developer\n"

// fakeToolchain stands in for rendercv and typst.
type fakeToolchain struct {
	pages   int
	err     error
	block   bool
	compile atomic.Int32
	typst   atomic.Value
}

func (f *fakeToolchain) BuildModel(_ context.Context, yamlPath string, opts render.BuildOptions) (*render.Model, error) {
	return render.LoadModel(yamlPath, opts)
}

func (f *fakeToolchain) GenerateTypst(_ context.Context, m *render.Model) (string, error) {
	f.typst.Store(m.TypstPath)
	if err := os.MkdirAll(filepath.Dir(m.TypstPath), 0o755); err != nil {
		return "", err
	}
	return m.TypstPath, os.WriteFile(m.TypstPath, []byte("#set page()"), 0o644)
}

func (f *fakeToolchain) GeneratePDF(_ context.Context, m *render.Model, _ string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(m.PDFPath), 0o755); err != nil {
		return "", err
	}
	return m.PDFPath, os.WriteFile(m.PDFPath, []byte("%PDF-1.7 fake"), 0o644)
}

func (f *fakeToolchain) Compile(ctx context.Context, _, _ string, _ render.Format) ([][]byte, error) {
	f.compile.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]byte, f.pages)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("<svg>page %d</svg>", i+1))
	}
	return out, nil
}

type sentDoc struct {
	filename string
	data     []byte
}

type recordingNotifier struct {
	sent chan sentDoc
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan sentDoc, 4)}
}

func (r *recordingNotifier) SendDocument(_ context.Context, filename string, data []byte) error {
	r.sent <- sentDoc{filename: filename, data: append([]byte(nil), data...)}
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Render.WorkDir = t.TempDir()
	cfg.Render.Timeout = 5 * time.Second
	cfg.Render.AcquireTimeout = time.Second
	cfg.Notify.Timeout = time.Second
	return cfg
}

func newTestApp(svc *RenderService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal server error"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code, msg = fe.Code, fe.Message
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})
	app.Post("/rendercv", svc.HandleRenderCV)
	app.Post("/rendersvg", svc.HandleRenderSVG)
	app.Get("/render/stats", svc.HandleStats)
	return app
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("expected JSON error body, got %q: %v", body, err)
	}
	return out.Error
}

func assertNoJobDirs(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected no temp dirs left, found %v", names)
	}
}
