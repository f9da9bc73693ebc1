package notify

import (
	"context"
	"fmt"
	"log/slog"
	"stridepoints/app/storage/models"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Event is one freshly mirrored activity, announced to the challenge channel.
type Event struct {
	User     models.User
	Activity models.Activity
}

// Announcer posts a message to a Telegram channel for every event it
// receives. It is entirely optional; when no API key is configured the
// reconciler simply runs without a channel.
type Announcer struct {
	APIKey    string
	ChannelId int64
	Bot       *bot.Bot
	Events    chan Event
}

func NewAnnouncer(apiKey string, channelId int64, events chan Event) *Announcer {
	return &Announcer{
		APIKey:    apiKey,
		ChannelId: channelId,
		Events:    events,
	}
}

func (a *Announcer) Start(ctx context.Context) {
	b, err := bot.New(a.APIKey)
	if err != nil {
		slog.Error("error occurred when spinning up the bot", "err", err)
		return
	}
	a.Bot = b
	go a.Bot.Start(ctx)
	for ev := range a.Events {
		a.announce(ctx, ev)
	}
}

func (a *Announcer) announce(ctx context.Context, ev Event) {
	text := FormatActivityMessage(ev)
	_, err := a.Bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    a.ChannelId,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		slog.Error("error while sending announcement", "err", err)
	}
}

// FormatActivityMessage renders the channel announcement for one activity.
func FormatActivityMessage(ev Event) string {
	name := bot.EscapeMarkdownUnescaped(ev.User.DisplayName())
	title := bot.EscapeMarkdownUnescaped(ev.Activity.Name)
	return fmt.Sprintf("*%s* logged a %s: %s\n%.2f km in %d min",
		name,
		ev.Activity.ActivityType,
		title,
		ev.Activity.Distance/1000,
		ev.Activity.MovingTime/60,
	)
}
