package character

import (
	"strings"
)

const (
	DefaultModel = "gpt-4"

	groupChatInstruction = "You are participating in a Discord chat with other AI bots and possibly humans. " +
		"Keep your responses concise and engaging. Respond naturally to the conversation " +
		"flow and stay in character at all times."
)

// Character is a persona a bot plays, as stored in the Notion database.
type Character struct {
	Name          string   `json:"name"`
	Personality   string   `json:"personality,omitempty"`
	SpeakingStyle string   `json:"speaking_style,omitempty"`
	Language      string   `json:"language,omitempty"`
	Restrictions  string   `json:"restrictions,omitempty"`
	Background    string   `json:"background,omitempty"`
	Interests     []string `json:"interests,omitempty"`
	Model         string   `json:"model,omitempty"`
}

// Fallback is used when the Notion database has no entry for name.
func Fallback(name string) Character {
	return Character{
		Name:          name,
		Personality:   "Friendly and helpful",
		SpeakingStyle: "Casual and conversational",
		Language:      "English",
		Model:         DefaultModel,
	}
}

// FallbackPrompt is used when the character could not be loaded at all.
func FallbackPrompt(name string) string {
	return "You are " + name + ". Be friendly and helpful."
}

func (c Character) ModelOrDefault() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c Character) SystemPrompt() string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, "You are "+c.Name+".")
	}
	if c.Personality != "" {
		parts = append(parts, "Personality: "+c.Personality)
	}
	if c.SpeakingStyle != "" {
		parts = append(parts, "Speaking style: "+c.SpeakingStyle)
	}
	if c.Language != "" {
		parts = append(parts, "You primarily communicate in "+c.Language+".")
	}
	if c.Background != "" {
		parts = append(parts, "Background: "+c.Background)
	}
	if len(c.Interests) != 0 {
		parts = append(parts, "Your interests include: "+strings.Join(c.Interests, ", "))
	}
	if c.Restrictions != "" {
		parts = append(parts, "Restrictions: "+c.Restrictions)
	}
	parts = append(parts, groupChatInstruction)
	return strings.Join(parts, "\n\n")
}

// Introduction is the message a bot posts when it joins the channel. extra is
// appended before the closing line when not empty.
func (c Character) Introduction(extra string) string {
	parts := []string{"こんにちは！私は" + c.Name + "です。"}
	if c.Personality != "" {
		parts = append(parts, "性格: "+c.Personality)
	}
	if c.SpeakingStyle != "" {
		parts = append(parts, "話し方: "+c.SpeakingStyle)
	}
	if len(c.Interests) != 0 {
		parts = append(parts, "興味・関心: "+strings.Join(c.Interests, "、"))
	}
	if c.Background != "" {
		parts = append(parts, "背景: "+c.Background)
	}
	if c.Model != "" {
		parts = append(parts, "使用モデル: "+c.Model)
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	parts = append(parts, "気軽に話しかけてください！")
	return strings.Join(parts, "\n")
}
