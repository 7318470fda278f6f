package discordio

import (
	"context"
	"fmt"
	"log/slog"

	"ai-zoo-bot/pkg/zoo"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

// Messenger posts to Discord through the REST API only.
type Messenger struct {
	rest rest.Rest
}

func NewMessenger(r rest.Rest) *Messenger {
	return &Messenger{rest: r}
}

// NewRestMessenger is for one-shot senders that never open a gateway.
func NewRestMessenger(token string) *Messenger {
	return NewMessenger(rest.New(rest.NewClient(token)))
}

func (m *Messenger) SendMessage(ctx context.Context, channelID snowflake.ID, content string) error {
	_, err := m.rest.CreateMessage(channelID, discord.MessageCreate{
		Content:         content,
		AllowedMentions: &discord.AllowedMentions{},
	}, rest.WithCtx(ctx))
	return err
}

func (m *Messenger) SendTyping(ctx context.Context, channelID snowflake.ID) error {
	return m.rest.SendTyping(channelID, rest.WithCtx(ctx))
}

// BotFactory builds the bot once its messenger exists.
type BotFactory func(messenger *Messenger) *zoo.Bot

// Run connects a bot to the gateway and blocks until ctx is done.
func Run(ctx context.Context, token string, newBot BotFactory) error {
	h := NewHandler(ctx)
	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages, gateway.IntentMessageContent),
			gateway.WithPresenceOpts(gateway.WithListeningActivity("the zoo"))),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagChannels)),
		bot.WithEventListeners(h, &events.ListenerAdapter{
			OnReady: func(ev *events.Ready) {
				h.Bot.Start(ctx, ev.User.ID)
			},
			OnGuildMessageCreate: func(ev *events.GuildMessageCreate) {
				h.Bot.HandleMessage(ctx, MessageFrom(ev.Message))
			},
		}))
	if err != nil {
		return fmt.Errorf("discordio: error while creating client: %w", err)
	}
	h.Bot = newBot(NewMessenger(client.Rest))

	defer func() {
		h.Bot.Wait()
		client.Close(context.Background())
	}()

	if err := handler.SyncCommands(client, Commands, nil); err != nil {
		slog.Error("zoo: error while syncing commands", slog.String("bot", h.Bot.Name()), tint.Err(err))
	}
	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("discordio: error while opening gateway: %w", err)
	}

	slog.Info("zoo: bot is now running.", slog.String("bot", h.Bot.Name()), slog.String("disgo.version", disgo.Version))
	<-ctx.Done()
	slog.Info("zoo: shutting down", slog.String("bot", h.Bot.Name()))
	return nil
}

// MessageFrom converts a gateway message, preferring the guild nickname.
func MessageFrom(msg discord.Message) zoo.Message {
	author := msg.Author.EffectiveName()
	if msg.Member != nil && msg.Member.Nick != nil && *msg.Member.Nick != "" {
		author = *msg.Member.Nick
	}
	return zoo.Message{
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		Author:    author,
		Content:   msg.Content,
	}
}
