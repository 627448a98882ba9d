package uploaders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramUploader posts finished videos to a chat
type TelegramUploader struct {
	api    telegramSender
	chatID int64
}

// NewTelegramUploader connects to the Bot API; it fails on a bad token.
func NewTelegramUploader(botToken string, chatID int64) (*TelegramUploader, error) {
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID not set")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramUploader{api: api, chatID: chatID}, nil
}

func (t *TelegramUploader) Platform() string {
	return "telegram"
}

func (t *TelegramUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return &UploadResult{Success: false, Platform: "telegram", Error: err.Error()}, err
	}

	videoFile, err := os.Open(req.VideoPath)
	if err != nil {
		return &UploadResult{
			Success:  false,
			Platform: "telegram",
			Error:    fmt.Sprintf("Failed to open video: %v", err),
		}, err
	}
	defer videoFile.Close()

	caption := req.Caption
	if caption == "" {
		caption = req.Title
	}

	v := tgbotapi.NewVideo(t.chatID, tgbotapi.FileReader{Name: filepath.Base(req.VideoPath), Reader: videoFile})
	v.Caption = caption
	v.SupportsStreaming = true

	msg, err := t.api.Send(v)
	if err != nil {
		return &UploadResult{
			Success:  false,
			Platform: "telegram",
			Error:    err.Error(),
			Details:  map[string]string{"chat_id": strconv.FormatInt(t.chatID, 10)},
		}, fmt.Errorf("telegram post failed: %w", err)
	}

	return &UploadResult{
		Success:  true,
		Platform: "telegram",
		Details: map[string]string{
			"status":     "video sent to chat",
			"message_id": strconv.Itoa(msg.MessageID),
		},
	}, nil
}
