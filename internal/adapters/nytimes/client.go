package nytimes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/metrics"
)

// Client выгружает топ новостей New York Times по категориям.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient создаёт клиента провайдера.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

var _ domain.StoryProvider = (*Client)(nil)

type topStoriesResponse struct {
	Results []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Abstract    string `json:"abstract"`
		Section     string `json:"section"`
		UpdatedDate string `json:"updated_date"`
		Multimedia  []struct {
			URL string `json:"url"`
		} `json:"multimedia"`
	} `json:"results"`
}

// TopStories выполняет один GET по категории и возвращает сырые записи.
// Любой завершающий исход — успех, не-2xx, транспортная ошибка, ошибка
// построения запроса — возвращает управление вызывающему циклу, чтобы
// темп выгрузки всегда продвигался.
func (c *Client) TopStories(ctx context.Context, category string) ([]domain.RawStory, error) {
	endpoint := fmt.Sprintf("%s/svc/topstories/v2/%s.json?api-key=%s", c.baseURL, url.PathEscape(category), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.ProviderRequestError{Category: category, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("nytimes", "top_stories", category, start, err)
	if err != nil {
		return nil, &domain.ProviderFetchError{Category: category, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &domain.ProviderFetchError{Category: category, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderFetchError{Category: category, Err: err}
	}

	var parsed topStoriesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.ProviderParseError{Category: category, Err: err}
	}

	stories := make([]domain.RawStory, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		raw := domain.RawStory{
			URL:         r.URL,
			Title:       r.Title,
			Abstract:    r.Abstract,
			Section:     r.Section,
			UpdatedDate: r.UpdatedDate,
		}
		for _, m := range r.Multimedia {
			raw.Multimedia = append(raw.Multimedia, domain.RawMultimedia{URL: m.URL})
		}
		stories = append(stories, raw)
	}
	return stories, nil
}
