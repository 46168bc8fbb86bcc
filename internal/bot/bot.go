// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"omikuji-bot/internal/config"
	"omikuji-bot/internal/handler"
	"omikuji-bot/internal/pkg/lock"
	"omikuji-bot/internal/service"
)

// Commands are the slash commands registered with Telegram.
var Commands = []tele.Command{
	{Text: "omikuji", Description: "今日のおみくじを引きます（1日1回）。"},
	{Text: "balance", Description: "所持金と今日のおみくじの状態を表示します。"},
	{Text: "help", Description: "使い方を表示します。"},
}

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot            *tele.Bot
	cfg            *config.Config
	omikujiHandler *handler.OmikujiHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	OmikujiService *service.OmikujiService
	UserLock       *lock.UserLock
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		omikujiHandler: handler.NewOmikujiHandler(deps.OmikujiService, deps.UserLock),
	}

	b.registerMiddleware()
	b.registerHandlers()

	log.Info().
		Str("username", teleBot.Me.Username).
		Int64("id", teleBot.Me.ID).
		Msg("Logged in")

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.omikujiHandler.HandleHelp)
	b.bot.Handle("/help", b.omikujiHandler.HandleHelp)
	b.bot.Handle("/omikuji", b.omikujiHandler.HandleOmikuji)
	b.bot.Handle("/balance", b.omikujiHandler.HandleBalance)
}

// SyncCommands publishes the command list to Telegram.
// A failure only affects the client-side command menu, so it is logged.
func (b *Bot) SyncCommands() {
	if err := b.bot.SetCommands(Commands); err != nil {
		log.Warn().Err(err).Msg("Failed to sync commands")
		return
	}
	log.Info().Int("count", len(Commands)).Msg("Synced commands")
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.SyncCommands()
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
