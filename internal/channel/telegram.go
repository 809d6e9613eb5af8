package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chanrelay/internal/domain"
)

// pollRetryDelay is the pause after a failed getUpdates call that was not a rate limit.
const pollRetryDelay = 3 * time.Second

// GuardFunc runs fn and absorbs a rate-limit signal it returns (see relay.Backoff.Guard).
type GuardFunc func(ctx context.Context, fn func(context.Context) error) error

// TelegramConfig configures the Telegram channel source.
type TelegramConfig struct {
	Token       string
	APIEndpoint string // defaults to tgbotapi.APIEndpoint
	PollTimeout int    // seconds
	Debug       bool
	Mapping     domain.ChannelMapping
	Guard       GuardFunc
	Client      *http.Client
	Logger      *slog.Logger
}

// Telegram long-polls the Bot API for channel posts and publishes the posts
// of configured channels onto the bus.
type Telegram struct {
	cfg    TelegramConfig
	bot    *tgbotapi.BotAPI
	offset int
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Guard == nil {
		cfg.Guard = func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
	}
	if cfg.Client == nil {
		// long polls hold the connection for PollTimeout seconds
		cfg.Client = SharedHTTPClient(time.Duration(cfg.PollTimeout+10) * time.Second)
	}
	return &Telegram{
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to the Bot API and polls until ctx is cancelled or Stop is called.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, t.cfg.APIEndpoint, t.cfg.Client)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = t.cfg.Debug
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
		"channels", t.cfg.Mapping.Len(),
	)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram source stopping")
			return nil
		case <-t.stopCh:
			return nil
		default:
		}

		err := t.cfg.Guard(ctx, func(ctx context.Context) error { return t.poll(ctx, bus) })
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		t.logger.Error("telegram poll failed", "err", err)
		select {
		case <-ctx.Done():
		case <-t.stopCh:
		case <-time.After(pollRetryDelay):
		}
	}
}

// Stop ends the poll loop after the current getUpdates call returns.
func (t *Telegram) Stop() error {
	t.stopOnce.Do(func() { close(t.stopCh) })
	return nil
}

// poll runs one getUpdates call and publishes the relevant channel posts.
func (t *Telegram) poll(ctx context.Context, bus domain.MessageBus) error {
	updates, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         t.offset,
		Timeout:        t.cfg.PollTimeout,
		AllowedUpdates: []string{"channel_post"},
	})
	if err != nil {
		return sourceError(err)
	}

	for _, update := range updates {
		if update.UpdateID >= t.offset {
			t.offset = update.UpdateID + 1
		}
		post := update.ChannelPost
		if post == nil || post.Chat == nil {
			continue
		}
		key := ChannelKey(post.Chat)
		if !t.cfg.Mapping.Has(key) {
			t.logger.Debug("post from unconfigured channel ignored", "channel", key, "message_id", post.MessageID)
			continue
		}
		bus.Publish(ToInbound(post, key, t.logger))
	}
	return ctx.Err()
}

// sourceError turns a Bot API error carrying retry_after into a RateLimitedError.
func sourceError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return &domain.RateLimitedError{
			RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
			Err:        err,
		}
	}
	return fmt.Errorf("get updates: %w", err)
}

// ChannelKey returns "@username" for public channels, otherwise the numeric chat id.
func ChannelKey(chat *tgbotapi.Chat) string {
	if chat.UserName != "" {
		return "@" + chat.UserName
	}
	return strconv.FormatInt(chat.ID, 10)
}

// ToInbound converts a channel post. Media posts carry their text in the
// caption. The HTML rendering is left nil when the entities cannot be rendered.
func ToInbound(post *tgbotapi.Message, key string, logger *slog.Logger) domain.InboundMessage {
	text, raw := post.Text, post.Entities
	if text == "" && post.Caption != "" {
		text, raw = post.Caption, post.CaptionEntities
	}

	entities := make([]domain.Entity, 0, len(raw))
	for _, e := range raw {
		entities = append(entities, domain.Entity{
			Offset: e.Offset,
			Length: e.Length,
			Kind:   domain.EntityKind(e.Type),
			URL:    e.URL,
		})
	}

	msg := domain.InboundMessage{
		ID:        int64(post.MessageID),
		Channel:   key,
		Text:      text,
		Entities:  entities,
		Media:     mediaOf(post, logger),
		Timestamp: post.Time(),
	}

	if markup, err := RenderHTML(text, entities); err != nil {
		logger.Warn("markup not rendered",
			"channel", key,
			"message_id", post.MessageID,
			"err", fmt.Errorf("%w: %w", domain.ErrMarkupConversion, err),
		)
	} else {
		msg.Markup = &markup
	}
	return msg
}

func mediaOf(post *tgbotapi.Message, logger *slog.Logger) domain.Media {
	switch {
	case len(post.Photo) > 0:
		// sizes are ascending; keep the largest
		largest := post.Photo[len(post.Photo)-1]
		if largest.FileID == "" {
			logger.Warn("photo without file id",
				"message_id", post.MessageID,
				"err", domain.ErrMediaRetrieval,
			)
			return domain.Media{}
		}
		return domain.Media{Kind: domain.MediaPhoto, FileID: largest.FileID}
	case post.Document != nil:
		return domain.Media{Kind: domain.MediaDocument, FileID: post.Document.FileID}
	}
	return domain.Media{}
}
