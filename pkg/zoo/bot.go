package zoo

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"ai-zoo-bot/pkg/character"
	"ai-zoo-bot/pkg/conversation"
	"ai-zoo-bot/pkg/db"
	"ai-zoo-bot/pkg/delay"
	"ai-zoo-bot/pkg/llm"

	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

const (
	CommandPrefix = "!"

	// Discord rejects longer messages.
	messageLimit = 2000

	minCooldownMinutes = 5
	maxCooldownMinutes = 15

	minEstimatedLength = 50
	maxEstimatedLength = 200
)

var ErrNoChannel = errors.New("no channel configured")

type Messenger interface {
	SendMessage(ctx context.Context, channelID snowflake.ID, content string) error
	SendTyping(ctx context.Context, channelID snowflake.ID) error
}

type CharacterSource interface {
	Character(ctx context.Context, name string) (character.Character, bool, error)
	Refresh(ctx context.Context) error
}

type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

type Pacer interface {
	Delay(ctx context.Context) error
	Type(ctx context.Context, typer delay.Typer, channelID snowflake.ID, length int) error
}

type Config struct {
	Name       string
	ChannelID  snowflake.ID
	MaxTurns   int
	MaxHistory int
	BotNames   []string
	Policy     Policy
}

// Deps are the collaborators of a Bot. Store and DebugLogger may be nil.
type Deps struct {
	Messenger   Messenger
	Characters  CharacterSource
	Generator   Generator
	Pacer       Pacer
	Store       db.Store
	DebugLogger *slog.Logger
}

// Message is an incoming chat message.
type Message struct {
	ChannelID snowflake.ID
	AuthorID  snowflake.ID
	Author    string
	Content   string
}

type Status struct {
	Name          string     `json:"name"`
	Character     string     `json:"character"`
	Model         string     `json:"model"`
	CoolingDown   bool       `json:"cooling_down"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	HistorySize   int        `json:"history_size"`
	Turns         int        `json:"turns"`
	MaxTurns      int        `json:"max_turns"`
}

// Bot plays one character in the zoo channel.
type Bot struct {
	cfg     Config
	deps    Deps
	history *conversation.Manager

	now      func() time.Time
	cooldown func() time.Duration

	mu            sync.Mutex
	selfID        snowflake.ID
	character     character.Character
	systemPrompt  string
	cooldownUntil time.Time
	introduced    bool

	wg sync.WaitGroup
}

func New(cfg Config, deps Deps) *Bot {
	if cfg.Policy == nil {
		cfg.Policy = Always{}
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if deps.DebugLogger == nil {
		deps.DebugLogger = slog.New(slog.DiscardHandler)
	}
	return &Bot{
		cfg:          cfg,
		deps:         deps,
		history:      conversation.NewManager(cfg.MaxHistory, cfg.BotNames),
		now:          time.Now,
		cooldown:     randomCooldown,
		character:    character.Fallback(cfg.Name),
		systemPrompt: character.FallbackPrompt(cfg.Name),
	}
}

func randomCooldown() time.Duration {
	return time.Duration(minCooldownMinutes+rand.IntN(maxCooldownMinutes-minCooldownMinutes+1)) * time.Minute
}

func (b *Bot) Name() string {
	return b.cfg.Name
}

// Start runs Ready in the background. Wait also waits for it.
func (b *Bot) Start(ctx context.Context, selfID snowflake.ID) {
	b.wg.Go(func() {
		b.Ready(ctx, selfID)
	})
}

// Ready is called once the gateway session is up. It loads the character,
// restores the stored history and posts the introduction the first time.
func (b *Bot) Ready(ctx context.Context, selfID snowflake.ID) {
	b.mu.Lock()
	b.selfID = selfID
	b.mu.Unlock()
	slog.Info("zoo: bot is ready", slog.String("bot", b.cfg.Name), slog.Any("user.id", selfID))

	b.loadCharacter(ctx)
	b.restoreHistory(ctx)

	if b.cfg.ChannelID == 0 {
		slog.Warn("zoo: no channel configured, skipping introduction", slog.String("bot", b.cfg.Name))
		return
	}
	b.mu.Lock()
	if b.introduced {
		b.mu.Unlock()
		return
	}
	b.introduced = true
	b.mu.Unlock()

	if err := b.send(ctx, b.cfg.ChannelID, b.Introduction()); err != nil {
		slog.Error("zoo: error while sending introduction", slog.String("bot", b.cfg.Name), slog.Any("channel.id", b.cfg.ChannelID), tint.Err(err))
		return
	}
	slog.Info("zoo: sent introduction", slog.String("bot", b.cfg.Name), slog.Any("channel.id", b.cfg.ChannelID))
}

func (b *Bot) loadCharacter(ctx context.Context) {
	name := b.cfg.Name
	c, prompt := character.Fallback(name), ""
	if b.deps.Characters == nil {
		prompt = character.FallbackPrompt(name)
	} else {
		found, ok, err := b.deps.Characters.Character(ctx, name)
		switch {
		case err != nil:
			slog.Error("zoo: error while loading character, using defaults", slog.String("bot", name), tint.Err(err))
			prompt = character.FallbackPrompt(name)
		case !ok:
			slog.Warn("zoo: character not found in notion, using defaults", slog.String("bot", name))
			prompt = c.SystemPrompt()
		default:
			c = found
			prompt = c.SystemPrompt()
		}
	}

	b.mu.Lock()
	b.character = c
	b.systemPrompt = prompt
	b.mu.Unlock()
	slog.Info("zoo: character loaded", slog.String("bot", name), slog.String("model", c.ModelOrDefault()))
}

func (b *Bot) restoreHistory(ctx context.Context) {
	if b.deps.Store == nil || b.cfg.ChannelID == 0 || b.history.Len() != 0 {
		return
	}
	limit := b.cfg.MaxHistory
	if limit <= 0 {
		limit = conversation.DefaultMaxHistory
	}
	stored, err := b.deps.Store.RecentMessages(ctx, b.cfg.Name, b.cfg.ChannelID, limit)
	if err != nil {
		slog.Error("zoo: error while restoring history", slog.String("bot", b.cfg.Name), tint.Err(err))
		return
	}
	messages := make([]conversation.Message, 0, len(stored))
	for _, msg := range stored {
		messages = append(messages, conversation.Message{
			Author:    msg.Author,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
			Self:      msg.IsSelf,
		})
	}
	b.history.Restore(messages)
	slog.Debug("zoo: history restored", slog.String("bot", b.cfg.Name), slog.Int("messages", len(messages)))
}

// HandleMessage records msg and, unless the bot is cooling down or the policy
// declines, answers it in the background. Responses are bound to ctx.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) {
	b.mu.Lock()
	selfID := b.selfID
	b.mu.Unlock()
	if msg.AuthorID == selfID && selfID != 0 {
		return
	}
	debug := b.deps.DebugLogger.With(slog.String("bot", b.cfg.Name), slog.Any("channel.id", msg.ChannelID), slog.String("author", msg.Author))
	if b.cfg.ChannelID != 0 && msg.ChannelID != b.cfg.ChannelID {
		debug.Debug("zoo: ignoring message from another channel")
		return
	}
	if strings.HasPrefix(msg.Content, CommandPrefix) {
		debug.Debug("zoo: ignoring command message")
		return
	}
	if b.coolingDown() {
		debug.Debug("zoo: ignoring message while cooling down")
		return
	}

	b.history.Add(msg.Author, msg.Content, false)
	b.persist(ctx, msg.ChannelID, msg.Author, msg.Content, false)

	if b.history.ShouldCoolDown(b.cfg.MaxTurns) {
		b.history.ResetTurns()
		d := b.cooldown()
		b.mu.Lock()
		b.cooldownUntil = b.now().Add(d)
		b.mu.Unlock()
		slog.Info("zoo: cooling down", slog.String("bot", b.cfg.Name), slog.Int("turns", b.cfg.MaxTurns), slog.Duration("duration", d))
		return
	}

	if !b.cfg.Policy.ShouldRespond() {
		debug.Debug("zoo: decided not to respond")
		return
	}
	b.wg.Go(func() {
		b.respond(ctx, msg.ChannelID)
	})
}

func (b *Bot) coolingDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cooldownUntil.IsZero() {
		return false
	}
	if b.now().Before(b.cooldownUntil) {
		return true
	}
	b.cooldownUntil = time.Time{}
	slog.Info("zoo: cooldown ended", slog.String("bot", b.cfg.Name))
	return false
}

func (b *Bot) respond(ctx context.Context, channelID snowflake.ID) {
	if err := b.deps.Pacer.Delay(ctx); err != nil {
		return
	}

	b.mu.Lock()
	c, systemPrompt := b.character, b.systemPrompt
	b.mu.Unlock()

	model := c.ModelOrDefault()
	req := llm.Request{Model: model}
	if llm.ProviderFor(model) == llm.ProviderAnthropic {
		req.Prompt = b.history.AnthropicPrompt(systemPrompt)
	} else {
		req.Messages = b.history.OpenAIMessages(systemPrompt)
	}

	length := minEstimatedLength + rand.IntN(maxEstimatedLength-minEstimatedLength+1)
	if err := b.deps.Pacer.Type(ctx, b.deps.Messenger, channelID, length); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("zoo: error while simulating typing", slog.String("bot", b.cfg.Name), tint.Err(err))
	}

	text, err := b.deps.Generator.Generate(ctx, req)
	if err != nil {
		slog.Error("zoo: error while generating a response", slog.String("bot", b.cfg.Name), slog.String("model", model), tint.Err(err))
		return
	}

	b.history.Add(c.Name, text, true)
	b.persist(ctx, channelID, c.Name, text, true)
	if err := b.send(ctx, channelID, text); err != nil {
		slog.Error("zoo: error while sending a response", slog.String("bot", b.cfg.Name), slog.Any("channel.id", channelID), tint.Err(err))
	}
}

func (b *Bot) persist(ctx context.Context, channelID snowflake.ID, author string, content string, self bool) {
	if b.deps.Store == nil {
		return
	}
	err := b.deps.Store.SaveMessage(ctx, db.Message{
		Bot:       b.cfg.Name,
		ChannelID: channelID,
		Author:    author,
		Content:   content,
		IsSelf:    self,
		CreatedAt: b.now(),
	})
	if err != nil {
		slog.Error("zoo: error while saving message", slog.String("bot", b.cfg.Name), tint.Err(err))
	}
}

func (b *Bot) send(ctx context.Context, channelID snowflake.ID, content string) error {
	for _, chunk := range SplitMessage(content, messageLimit) {
		if err := b.deps.Messenger.SendMessage(ctx, channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SendScheduled posts content to the configured channel as the bot.
func (b *Bot) SendScheduled(ctx context.Context, content string) error {
	if b.cfg.ChannelID == 0 {
		return ErrNoChannel
	}
	if err := b.send(ctx, b.cfg.ChannelID, content); err != nil {
		return err
	}
	b.mu.Lock()
	name := b.character.Name
	b.mu.Unlock()
	b.history.Add(name, content, true)
	b.persist(ctx, b.cfg.ChannelID, name, content, true)
	return nil
}

func (b *Bot) Introduction() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.character.Introduction(b.cfg.Policy.IntroductionNote())
}

func (b *Bot) Character() character.Character {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.character
}

// Reload refreshes the character source and reloads the character.
func (b *Bot) Reload(ctx context.Context) error {
	if b.deps.Characters == nil {
		return errors.New("zoo: no character source configured")
	}
	if err := b.deps.Characters.Refresh(ctx); err != nil {
		return err
	}
	b.loadCharacter(ctx)
	return nil
}

func (b *Bot) ClearHistory() {
	b.history.Clear()
	slog.Info("zoo: history cleared", slog.String("bot", b.cfg.Name))
}

func (b *Bot) Status() Status {
	b.mu.Lock()
	s := Status{
		Name:      b.cfg.Name,
		Character: b.character.Name,
		Model:     b.character.ModelOrDefault(),
		MaxTurns:  b.cfg.MaxTurns,
	}
	if !b.cooldownUntil.IsZero() && b.now().Before(b.cooldownUntil) {
		s.CoolingDown = true
		s.CooldownUntil = json.Ptr(b.cooldownUntil)
	}
	b.mu.Unlock()

	s.HistorySize = b.history.Len()
	s.Turns = b.history.Turns()
	return s
}

// Wait blocks until the introduction and all in-flight responses have
// finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// SplitMessage cuts content into chunks of at most limit runes, preferring
// line breaks.
func SplitMessage(content string, limit int) []string {
	runes := []rune(content)
	if len(runes) <= limit {
		return []string{content}
	}
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) != 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
