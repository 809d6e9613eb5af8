package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"chanrelay/internal/domain"
)

const discordMaxMsgLen = 2000

// DiscordConfig configures the Discord webhook sender.
type DiscordConfig struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
}

// Discord executes Discord webhooks through a token-less discordgo session.
// Content over the 2000 character limit is split into consecutive posts.
type Discord struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if cfg.Client != nil {
		session.Client = cfg.Client
	}
	if cfg.UserAgent != "" {
		session.UserAgent = cfg.UserAgent
	}
	// a destination 429 is a failed delivery, not something to wait out
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0

	return &Discord{session: session, logger: cfg.Logger}, nil
}

func (d *Discord) Send(ctx context.Context, dest domain.Destination, content string) error {
	id, token, err := ParseDiscordWebhook(dest.URL)
	if err != nil {
		return &domain.DispatchError{Destination: dest.Label(), Err: err}
	}

	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		params := &discordgo.WebhookParams{
			Content:   chunk,
			Username:  dest.Username,
			AvatarURL: dest.AvatarURL,
		}
		if _, err := d.session.WebhookExecute(id, token, false, params, discordgo.WithContext(ctx)); err != nil {
			return discordDispatchError(dest, err)
		}
	}
	return nil
}

func discordDispatchError(dest domain.Destination, err error) error {
	de := &domain.DispatchError{Destination: dest.Label(), Err: err}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		de.StatusCode = rest.Response.StatusCode
		body := string(rest.ResponseBody)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		de.Body = body
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		de.StatusCode = http.StatusTooManyRequests
	}
	return de
}

// ParseDiscordWebhook extracts the webhook id and token from
// https://discord.com/api/webhooks/{id}/{token} (optionally /api/v10/...).
func ParseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid discord webhook URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook URL must contain /webhooks/{id}/{token}")
}

// splitMessage splits msg into chunks of at most maxLen characters,
// preferring to cut after a newline in the second half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	if utf8.RuneCountInString(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	runes := []rune(msg)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}

		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
