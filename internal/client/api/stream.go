package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/iudanet/tallysync/pkg/api"
)

// maxStreamLine предел длины одной строки потока (initial несет все счетчики)
const maxStreamLine = 8 << 20

// ErrStreamClosed сервер закрыл поток
var ErrStreamClosed = errors.New("sync stream closed by server")

// Subscribe открывает поток GET /api/v1/sync и вызывает handle для каждого
// события в порядке получения. Блокируется до закрытия потока, отмены ctx
// или ошибки handle. Всегда возвращает не nil ошибку.
func (c *Client) Subscribe(ctx context.Context, handle func(api.Message) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/sync", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync stream request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newStatusError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg api.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return fmt.Errorf("failed to decode stream message: %w", err)
		}
		if err := handle(msg); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("sync stream read failed: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrStreamClosed
}
