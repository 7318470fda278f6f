package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"ai-zoo-bot/pkg/character"
	"ai-zoo-bot/pkg/config"

	"github.com/jomei/notionapi"
	"github.com/lmittmann/tint"
)

var (
	ErrNotConfigured = errors.New("notion api key or database id is not set")
	ErrStale         = errors.New("character cache is expired")
)

// Service serves characters from a Notion database through an in-memory cache.
type Service struct {
	source          Source
	mapping         map[string]string
	refreshInterval time.Duration
	expiry          time.Duration
	now             func() time.Time

	refreshMu   sync.Mutex
	mu          sync.RWMutex
	cache       map[string]character.Character
	lastRefresh time.Time
}

// New creates a service. A nil source makes every refresh fail with
// ErrNotConfigured.
func New(cfg config.Notion, source Source) *Service {
	defaults := config.DefaultNotion(cfg.DatabaseID)
	if len(cfg.CharacterProperties) == 0 {
		cfg.CharacterProperties = defaults.CharacterProperties
	}
	if cfg.RefreshIntervalMinutes <= 0 {
		cfg.RefreshIntervalMinutes = defaults.RefreshIntervalMinutes
	}
	if cfg.CacheExpiryHours <= 0 {
		cfg.CacheExpiryHours = defaults.CacheExpiryHours
	}
	return &Service{
		source:          source,
		mapping:         cfg.CharacterProperties,
		refreshInterval: time.Duration(cfg.RefreshIntervalMinutes) * time.Minute,
		expiry:          time.Duration(cfg.CacheExpiryHours) * time.Hour,
		now:             time.Now,
		cache:           make(map[string]character.Character),
	}
}

// Character looks up name case-insensitively, refreshing the cache first when
// it is due. A failed refresh is logged and reported as not found unless name
// is still cached. The error is only set when ctx is done.
func (s *Service) Character(ctx context.Context, name string) (character.Character, bool, error) {
	if err := s.refreshIfDue(ctx); err != nil && ctx.Err() != nil {
		return character.Character{}, false, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired() {
		slog.Warn("notion: character cache is unusable", slog.String("name", name), tint.Err(ErrStale))
		return character.Character{}, false, nil
	}
	c, ok := s.cache[strings.ToLower(name)]
	return c, ok, nil
}

// Characters returns all cached characters sorted by name.
func (s *Service) Characters(ctx context.Context) ([]character.Character, error) {
	err := s.refreshIfDue(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err != nil && len(s.cache) == 0 {
		return nil, err
	}
	characters := make([]character.Character, 0, len(s.cache))
	for _, c := range s.cache {
		characters = append(characters, c)
	}
	slices.SortFunc(characters, func(a, b character.Character) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return characters, nil
}

// Refresh replaces the cache with the current database content. On error the
// previous cache is kept.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refresh(ctx)
}

func (s *Service) refreshIfDue(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	due := s.lastRefresh.IsZero() || s.now().Sub(s.lastRefresh) > s.refreshInterval
	s.mu.RUnlock()
	if !due {
		return nil
	}
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	slog.Info("notion: refreshing character cache")
	if s.source == nil {
		slog.Error("notion: error while refreshing character cache", tint.Err(ErrNotConfigured))
		return ErrNotConfigured
	}
	pages, err := s.source.Pages(ctx)
	if err != nil {
		slog.Error("notion: error while refreshing character cache", tint.Err(err))
		return fmt.Errorf("notion: refresh failed: %w", err)
	}

	cache := make(map[string]character.Character, len(pages))
	for _, page := range pages {
		c, ok := ParseProperties(page.Properties, s.mapping)
		if !ok {
			slog.Debug("notion: skipping page without a name", slog.String("page.id", string(page.ID)))
			continue
		}
		cache[strings.ToLower(c.Name)] = c
	}

	s.mu.Lock()
	s.cache = cache
	s.lastRefresh = s.now()
	s.mu.Unlock()
	slog.Info("notion: character cache refreshed", slog.Int("characters", len(cache)))
	return nil
}

func (s *Service) expired() bool {
	return s.lastRefresh.IsZero() || s.now().Sub(s.lastRefresh) > s.expiry
}

// ParseProperties builds a character from page properties using mapping
// (character field -> Notion column). ok is false when no name was found.
func ParseProperties(props notionapi.Properties, mapping map[string]string) (character.Character, bool) {
	var c character.Character
	for field, column := range mapping {
		prop, ok := props[column]
		if !ok {
			continue
		}
		if value := PropertyValue(prop); value != nil {
			assign(&c, field, value)
		}
	}
	return c, c.Name != ""
}

// PropertyValue extracts a plain Go value from a Notion property: string for
// title, rich text and select, []string for multi select, bool for checkbox
// and float64 for number. Other types and empty values yield nil.
func PropertyValue(prop notionapi.Property) any {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		if len(p.Title) != 0 {
			return p.Title[0].PlainText
		}
	case *notionapi.RichTextProperty:
		if len(p.RichText) != 0 {
			return p.RichText[0].PlainText
		}
	case *notionapi.SelectProperty:
		if p.Select.Name != "" {
			return p.Select.Name
		}
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, option := range p.MultiSelect {
			names = append(names, option.Name)
		}
		return names
	case *notionapi.CheckboxProperty:
		return p.Checkbox
	case *notionapi.NumberProperty:
		return p.Number
	}
	return nil
}

func assign(c *character.Character, field string, value any) {
	if field == "interests" {
		switch v := value.(type) {
		case []string:
			c.Interests = v
		case string:
			for _, interest := range strings.Split(v, ",") {
				if interest = strings.TrimSpace(interest); interest != "" {
					c.Interests = append(c.Interests, interest)
				}
			}
		}
		return
	}

	var text string
	switch v := value.(type) {
	case string:
		text = v
	case []string:
		text = strings.Join(v, ", ")
	default:
		text = fmt.Sprint(v)
	}
	switch field {
	case "name":
		c.Name = text
	case "personality":
		c.Personality = text
	case "speaking_style":
		c.SpeakingStyle = text
	case "language":
		c.Language = text
	case "restrictions":
		c.Restrictions = text
	case "background":
		c.Background = text
	case "model":
		c.Model = text
	}
}
