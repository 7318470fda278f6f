package discordio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ai-zoo-bot/pkg/zoo"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

const reloadTimeout = 2500 * time.Millisecond

var Commands = []discord.ApplicationCommandCreate{
	discord.SlashCommandCreate{
		Name:        "zoo",
		Description: "Talk to the zoo bot about itself",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "character",
				Description: "Shows the character this bot plays",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "reload",
				Description: "Reloads the character from Notion",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "clear",
				Description: "Clears the conversation history",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "status",
				Description: "Shows turns, history and cooldown",
			},
		},
	},
}

// NewHandler builds the command router. ctx bounds the work commands start.
func NewHandler(ctx context.Context) *Handler {
	mux := handler.New()
	mux.Error(func(e *handler.InteractionEvent, err error) {
		i := e.Interaction.(discord.ApplicationCommandInteraction)
		slog.Error("zoo: error while handling a command", slog.String("command.name", i.Data.CommandName()), tint.Err(err))
		_ = e.Respond(discord.InteractionResponseTypeCreateMessage, discord.NewMessageCreate().
			WithContentf("There was an error while handling the command: %v", err).
			WithEphemeral(true))
	})
	h := &Handler{
		ctx:    ctx,
		Router: mux,
	}
	h.Route("/zoo", func(r handler.Router) {
		r.Command("/character", h.HandleCharacter)
		r.Command("/reload", h.HandleReload)
		r.Command("/clear", h.HandleClear)
		r.Command("/status", h.HandleStatus)
	})
	return h
}

// Handler serves the /zoo commands. Bot is set once the bot is built.
type Handler struct {
	Bot *zoo.Bot
	ctx context.Context
	handler.Router
}

func (h *Handler) HandleCharacter(event *handler.CommandEvent) error {
	return event.CreateMessage(discord.NewMessageCreate().
		WithContent(h.Bot.Introduction()).
		WithEphemeral(true))
}

func (h *Handler) HandleReload(event *handler.CommandEvent) error {
	messageCreate := discord.NewMessageCreate().WithEphemeral(true)
	ctx, cancel := h.reloadContext()
	defer cancel()
	if err := h.Bot.Reload(ctx); err != nil {
		slog.Error("zoo: error while reloading character", slog.String("bot", h.Bot.Name()), tint.Err(err))
		return event.CreateMessage(messageCreate.WithContent("There was an error while reloading the character from Notion."))
	}
	c := h.Bot.Character()
	return event.CreateMessage(messageCreate.WithContentf("Reloaded **%s** (model **%s**).", c.Name, c.ModelOrDefault()))
}

func (h *Handler) reloadContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, reloadTimeout)
}

func (h *Handler) HandleClear(event *handler.CommandEvent) error {
	h.Bot.ClearHistory()
	return event.CreateMessage(discord.NewMessageCreate().
		WithContent("Conversation history has been cleared.").
		WithEphemeral(true))
}

func (h *Handler) HandleStatus(event *handler.CommandEvent) error {
	return event.CreateMessage(discord.NewMessageCreate().
		WithContent(StatusContent(h.Bot.Status())).
		WithEphemeral(true))
}

func StatusContent(s zoo.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** plays **%s** with model **%s**.\n", s.Name, s.Character, s.Model)
	fmt.Fprintf(&b, "Turns: %d/%d, history: %d messages.", s.Turns, s.MaxTurns, s.HistorySize)
	if s.CoolingDown && s.CooldownUntil != nil {
		fmt.Fprintf(&b, "\nCooling down until <t:%d:t> (<t:%d:R>).", s.CooldownUntil.Unix(), s.CooldownUntil.Unix())
	}
	return b.String()
}
