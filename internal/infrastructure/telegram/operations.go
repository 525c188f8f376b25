package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
)

// Operations provides common Telegram bot operations
type Operations struct {
	bot    *api.BotAPI
	client *http.Client
}

// NewOperations creates a new Operations instance
func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{
		bot:    bot,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// DeleteMessage deletes a message from a chat
func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID))
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", mapPrivilegeError(err))
	}
	return nil
}

// RestrictMember revokes a user's ability to post. A zero until time means the
// restriction has no expiry.
func (o *Operations) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       false,
			CanSendOtherMessages:  false,
			CanAddWebPagePreviews: false,
		},
	}
	if !until.IsZero() {
		config.UntilDate = until.Unix()
	}
	_, err := o.bot.Request(config)
	if err != nil {
		return fmt.Errorf("failed to restrict user: %w", mapPrivilegeError(err))
	}
	return nil
}

// BanMember bans a user from a chat permanently
func (o *Operations) BanMember(ctx context.Context, chatID, userID int64) error {
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		RevokeMessages: true,
	}
	_, err := o.bot.Request(config)
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", mapPrivilegeError(err))
	}
	return nil
}

// SendMessage posts a plain text message to a chat
func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string) error {
	if _, err := o.bot.Send(api.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// MemberStatus returns the chat member status string as reported by Telegram
func (o *Operations) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	chatMember, err := o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: userID,
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat member: %w", err)
	}
	return chatMember.Status, nil
}

// Fetch downloads a file's bytes by its Telegram file ID
func (o *Operations) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := o.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return data, nil
}

func mapPrivilegeError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not enough rights") || strings.Contains(msg, "chat_admin_required") {
		return guarderrors.ErrNoPrivileges
	}
	return err
}
