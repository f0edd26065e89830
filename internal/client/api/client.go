package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/tallysync/pkg/api"
)

var _ CounterAPI = (*Client)(nil)

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client // без таймаута: поток /sync живет долго
	baseURL      string
}

// Option configures Client
type Option func(*Client)

// WithTimeout задает таймаут обычных запросов. На поток /sync не влияет.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCounters получает все счетчики
func (c *Client) ListCounters(ctx context.Context) ([]api.Counter, error) {
	var resp []api.Counter
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/counters", nil, &resp); err != nil {
		return nil, fmt.Errorf("list counters request failed: %w", err)
	}
	return resp, nil
}

// GetCounter получает счетчик по ID
func (c *Client) GetCounter(ctx context.Context, id string) (*api.Counter, error) {
	var resp api.Counter
	if err := c.doRequest(ctx, http.MethodGet, counterPath(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get counter request failed: %w", err)
	}
	return &resp, nil
}

// CreateCounter создает счетчик. Повторное создание с тем же ID дает конфликт (IsConflict).
func (c *Client) CreateCounter(ctx context.Context, req api.CreateCounterRequest) (*api.Counter, error) {
	var resp api.Counter
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/counters", req, &resp); err != nil {
		return nil, fmt.Errorf("create counter request failed: %w", err)
	}
	return &resp, nil
}

// UpdateCounter частично обновляет счетчик
func (c *Client) UpdateCounter(ctx context.Context, id string, req api.UpdateCounterRequest) (*api.Counter, error) {
	var resp api.Counter
	if err := c.doRequest(ctx, http.MethodPut, counterPath(id), req, &resp); err != nil {
		return nil, fmt.Errorf("update counter request failed: %w", err)
	}
	return &resp, nil
}

// DeleteCounter удаляет счетчик
func (c *Client) DeleteCounter(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, counterPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete counter request failed: %w", err)
	}
	return nil
}

// Increment применяет одиночное изменение (отрицательный delta для декремента)
func (c *Client) Increment(ctx context.Context, id string, req api.IncrementRequest) (*api.Counter, error) {
	var resp api.Counter
	if err := c.doRequest(ctx, http.MethodPost, counterPath(id)+"/increment", req, &resp); err != nil {
		return nil, fmt.Errorf("increment request failed: %w", err)
	}
	return &resp, nil
}

// IncrementBatch применяет пакет сгруппированных инкрементов одного счетчика
func (c *Client) IncrementBatch(ctx context.Context, id string, req api.BatchIncrementRequest) (*api.Counter, error) {
	var resp api.Counter
	if err := c.doRequest(ctx, http.MethodPost, counterPath(id)+"/increment-batch", req, &resp); err != nil {
		return nil, fmt.Errorf("increment batch request failed: %w", err)
	}
	return &resp, nil
}

func counterPath(id string) string {
	return "/api/v1/counters/" + url.PathEscape(id)
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
