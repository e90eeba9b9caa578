// Package notify forwards rendered documents to a chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"rendercv-service/internal/config"
	"rendercv-service/internal/domain"
	"rendercv-service/internal/infra/logging"
)

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// Notifier delivers a rendered document to an out-of-band recipient.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data []byte) error
}

// TelegramNotifier sends documents through the Bot API sendDocument method.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
}

// NewTelegramNotifier builds a notifier from cfg. Missing credentials are
// reported on each send, not here.
func NewTelegramNotifier(cfg config.NotifyConfig) *TelegramNotifier {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  base,
	}
}

// SendDocument uploads data as a document to the configured chat. The
// ctx deadline bounds the request.
func (n *TelegramNotifier) SendDocument(ctx context.Context, filename string, data []byte) error {
	if n.botToken == "" || n.chatID == "" {
		return domain.ErrNotifierDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a := fiber.Post(n.baseURL + "/bot" + n.botToken + "/sendDocument")
	if deadline, ok := ctx.Deadline(); ok {
		a.Timeout(time.Until(deadline))
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("chat_id", n.chatID)

	a.FileData(&fiber.FormFile{Fieldname: "document", Name: filename, Content: data}).
		MultipartForm(args)

	if err := a.Parse(); err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("telegram request: %w", errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return fmt.Errorf("telegram responded %d: %s", code, strings.TrimSpace(string(body)))
	}
	return nil
}

// Dispatch sends data in the background with its own timeout. Failures
// are logged only.
func Dispatch(n Notifier, timeout time.Duration, filename string, data []byte) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := n.SendDocument(ctx, filename, data); err != nil {
			if errors.Is(err, domain.ErrNotifierDisabled) {
				logging.Error("Telegram BOT_TOKEN or CHAT_ID not set")
				return
			}
			logging.Error("Failed to send document to Telegram", "error", err)
			return
		}
		logging.Info("Document sent to Telegram", "filename", filename)
	}()
}
