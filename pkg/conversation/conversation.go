package conversation

import (
	"strings"
	"sync"
	"time"

	"ai-zoo-bot/pkg/llm"
)

const DefaultMaxHistory = 10

type Message struct {
	Author    string
	Content   string
	Timestamp time.Time
	Self      bool
}

// Manager keeps a bounded conversation history and counts turns taken by
// anyone other than the bot itself.
type Manager struct {
	mu         sync.Mutex
	history    []Message
	maxHistory int
	turns      int
	botNames   map[string]struct{}
	now        func() time.Time
}

// NewManager creates a manager. botNames are authors whose messages are
// labelled as coming from another bot.
func NewManager(maxHistory int, botNames []string) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	names := make(map[string]struct{}, len(botNames))
	for _, name := range botNames {
		names[strings.ToLower(name)] = struct{}{}
	}
	return &Manager{
		maxHistory: maxHistory,
		botNames:   names,
		now:        time.Now,
	}
}

// Add appends a message and returns it with its timestamp set.
func (m *Manager) Add(author string, content string, self bool) Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{
		Author:    author,
		Content:   content,
		Timestamp: m.now(),
		Self:      self,
	}
	m.append(msg)
	if !self {
		m.turns++
	}
	return msg
}

// Restore seeds the history without counting turns.
func (m *Manager) Restore(messages []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		m.append(msg)
	}
}

func (m *Manager) append(msg Message) {
	m.history = append(m.history, msg)
	if over := len(m.history) - m.maxHistory; over > 0 {
		m.history = append([]Message(nil), m.history[over:]...)
	}
}

func (m *Manager) Recent(count int) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count >= len(m.history) {
		count = len(m.history)
	}
	return append([]Message(nil), m.history[len(m.history)-count:]...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

func (m *Manager) Turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns
}

func (m *Manager) ShouldCoolDown(maxTurns int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns >= maxTurns
}

func (m *Manager) ResetTurns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = 0
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.turns = 0
}

func (m *Manager) isBot(author string) bool {
	_, ok := m.botNames[strings.ToLower(author)]
	return ok
}

func (m *Manager) OpenAIMessages(systemPrompt string) []llm.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := make([]llm.ChatMessage, 0, len(m.history)+1)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: systemPrompt})
	for _, msg := range m.history {
		role := llm.RoleUser
		content := msg.Author + ": " + msg.Content
		switch {
		case msg.Self:
			role = llm.RoleAssistant
		case m.isBot(msg.Author):
			content = "Bot (" + msg.Author + "): " + msg.Content
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: content})
	}
	return messages
}

func (m *Manager) AnthropicPrompt(systemPrompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	for _, msg := range m.history {
		var prefix string
		switch {
		case msg.Self:
			prefix = "Assistant"
		case m.isBot(msg.Author):
			prefix = "Bot (" + msg.Author + ")"
		default:
			prefix = "Human (" + msg.Author + ")"
		}
		b.WriteString(prefix + ": " + msg.Content + "\n\n")
	}
	b.WriteString("Assistant: ")
	return b.String()
}

// EstimateTokens is a rough count assuming four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}
