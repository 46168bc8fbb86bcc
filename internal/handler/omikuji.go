// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"omikuji-bot/internal/pkg/lock"
	"omikuji-bot/internal/service"
)

// Reply texts.
const (
	msgFailed = "❌ おみくじの処理に失敗しました。しばらくしてからもう一度お試しください。"
	msgBusy   = "⏳ おみくじを引いています。少々お待ちください。"
)

// OmikujiHandler maps chat commands onto the draw service.
type OmikujiHandler struct {
	omikujiService *service.OmikujiService
	userLock       *lock.UserLock

	// sendPrivate delivers text to the requester only.
	sendPrivate func(c tele.Context, text string) error
}

// NewOmikujiHandler creates a new OmikujiHandler.
func NewOmikujiHandler(omikujiService *service.OmikujiService, userLock *lock.UserLock) *OmikujiHandler {
	return &OmikujiHandler{
		omikujiService: omikujiService,
		userLock:       userLock,
		sendPrivate:    sendDirect,
	}
}

// sendDirect sends text in a private chat with the sender.
func sendDirect(c tele.Context, text string) error {
	_, err := c.Bot().Send(c.Sender(), text)
	return err
}

// UserKey converts a Telegram user ID into the store's user key.
func UserKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Mention returns the display form of a Telegram user.
func Mention(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("User%d", u.ID)
}

// HandleOmikuji handles the /omikuji command.
// Draws today's fortune, or tells the user privately that they already drew.
func (h *OmikujiHandler) HandleOmikuji(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	userID := UserKey(sender.ID)

	// A second tap while the first draw is still being written is rejected
	// instead of queued.
	if !h.userLock.TryLock(userID) {
		log.Debug().Str("user_id", userID).Int("draws_in_flight", h.userLock.Len()).Msg("Draw already in progress")
		return c.Reply(msgBusy)
	}
	defer h.userLock.Unlock(userID)

	result, err := h.omikujiService.AttemptDraw(ctx, userID)
	if err != nil {
		return c.Reply(msgFailed)
	}

	name := Mention(sender)
	if result.Status == service.StatusAlreadyDrawn {
		text := FormatAlreadyDrawn(name, h.omikujiService.Tracker().NextReset())
		return h.replyPrivately(c, text)
	}

	return c.Reply(FormatDrawn(name, result))
}

// HandleBalance handles the /balance command.
// Shows the bonus balance and whether today's draw is still available.
func (h *OmikujiHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	status, err := h.omikujiService.GetStatus(ctx, UserKey(sender.ID))
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to get omikuji status")
		return c.Reply(msgFailed)
	}

	return c.Reply(FormatStatus(Mention(sender), status))
}

// HandleHelp handles the /start and /help commands.
func (h *OmikujiHandler) HandleHelp(c tele.Context) error {
	return c.Reply(HelpText())
}

// replyPrivately sends text to the requester only. Outside private chats it
// tries a direct message first and falls back to a reply when the bot cannot
// message the user (for example, they never opened a chat with it).
func (h *OmikujiHandler) replyPrivately(c tele.Context, text string) error {
	if chat := c.Chat(); chat == nil || chat.Type == tele.ChatPrivate {
		return c.Reply(text)
	}
	if err := h.sendPrivate(c, text); err != nil {
		log.Debug().Err(err).Int64("user_id", c.Sender().ID).Msg("Private message failed, replying in chat")
		return c.Reply(text)
	}
	return nil
}

// FormatDrawn renders a successful draw.
func FormatDrawn(name string, r *service.DrawResult) string {
	text := fmt.Sprintf("%s のおみくじ — 【%s】\n『%s』", name, r.Label, r.Message)
	if r.Reward > 0 {
		text += fmt.Sprintf("\n(特別に %d元 を付与しました)", r.Reward)
	}
	return text
}

// FormatAlreadyDrawn renders the daily limit notice with the time until reset.
func FormatAlreadyDrawn(name string, untilReset time.Duration) string {
	text := fmt.Sprintf("%s は今日すでにおみくじを引いています。明日またどうぞ。", name)
	if untilReset > 0 {
		hours := int(untilReset.Hours())
		minutes := int(untilReset.Minutes()) % 60
		text += fmt.Sprintf("\n(次のおみくじまで あと%d時間%d分)", hours, minutes)
	}
	return text
}

// FormatStatus renders a user's balance and today's draw state.
func FormatStatus(name string, s *service.UserStatus) string {
	today := "引き済み"
	if s.CanDraw {
		today = "まだ引いていません"
	}
	return fmt.Sprintf(
		"💰 %s の所持金: %d元\n"+
			"🎋 今日 (%s) のおみくじ: %s",
		name, s.Record.Balance, s.Today, today,
	)
}

// HelpText lists the available commands.
func HelpText() string {
	return "⛩ おみくじボット\n\n" +
		"/omikuji - 今日のおみくじを引きます（1日1回）\n" +
		"/balance - 所持金と今日のおみくじの状態を表示します"
}
