package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultRefreshIntervalMinutes = 60
	defaultCacheExpiryHours       = 24
)

// Notion maps character fields to the columns of the Notion character database.
type Notion struct {
	DatabaseID             string            `mapstructure:"database_id"`
	CharacterProperties    map[string]string `mapstructure:"character_properties"`
	RefreshIntervalMinutes int               `mapstructure:"refresh_interval_minutes"`
	CacheExpiryHours       int               `mapstructure:"cache_expiry_hours"`
}

func DefaultNotion(databaseID string) Notion {
	return Notion{
		DatabaseID: databaseID,
		CharacterProperties: map[string]string{
			"name":           "Name",
			"personality":    "Personality",
			"speaking_style": "Speaking Style",
			"language":       "Language",
			"restrictions":   "Restrictions",
			"background":     "Background",
			"interests":      "Interests",
			"model":          "Model",
		},
		RefreshIntervalMinutes: defaultRefreshIntervalMinutes,
		CacheExpiryHours:       defaultCacheExpiryHours,
	}
}

// LoadNotion reads a JSON notion config. String values written as ${VAR} are
// replaced with the environment variable VAR, which must be set.
func LoadNotion(path string) (Notion, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Notion{}, fmt.Errorf("config: error while reading %s: %w", path, err)
	}

	var n Notion
	if err := v.Unmarshal(&n, viper.DecodeHook(envReferenceHookFunc())); err != nil {
		return Notion{}, fmt.Errorf("config: error while decoding %s: %w", path, err)
	}
	defaults := DefaultNotion("")
	if len(n.CharacterProperties) == 0 {
		n.CharacterProperties = defaults.CharacterProperties
	}
	if n.RefreshIntervalMinutes <= 0 {
		n.RefreshIntervalMinutes = defaults.RefreshIntervalMinutes
	}
	if n.CacheExpiryHours <= 0 {
		n.CacheExpiryHours = defaults.CacheExpiryHours
	}
	return n, nil
}

func envReferenceHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, _ reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
			return data, nil
		}
		key := s[2 : len(s)-1]
		value, ok := os.LookupEnv(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissing, key)
		}
		return value, nil
	}
}
