package util

import (
	"net/http"
	"time"
)

const (
	llmTimeout    = 60 * time.Second
	notionTimeout = 15 * time.Second

	userAgent     = "ai-zoo-bot (https://github.com/ai-zoo/ai-zoo-bot)"
	notionVersion = "2022-06-28"
)

func NewLLMClient() *http.Client {
	return &http.Client{
		Timeout:   llmTimeout,
		Transport: &headerTripper{tripper: http.DefaultTransport},
	}
}

func NewNotionClient() *http.Client {
	return &http.Client{
		Timeout: notionTimeout,
		Transport: &headerTripper{
			tripper: http.DefaultTransport,
			headers: map[string]string{"Notion-Version": notionVersion},
		},
	}
}

// headerTripper sets a user agent and any missing headers on every request.
type headerTripper struct {
	tripper http.RoundTripper
	headers map[string]string
}

func (t *headerTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	for key, value := range t.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	return t.tripper.RoundTrip(req)
}
