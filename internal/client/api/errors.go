package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iudanet/tallysync/pkg/api"
)

// StatusError ответ сервера с кодом вне диапазона 2xx
type StatusError struct {
	Message    string
	StatusCode int
}

func newStatusError(code int, body []byte) *StatusError {
	var errResp api.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.Message != "" || errResp.Error != "") {
		msg = errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
	}
	return &StatusError{StatusCode: code, Message: msg}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsTransient сообщает, что запрос стоит повторить позже:
// транспортная ошибка, 5xx, 408 или 429. Отмена контекста временной ошибкой не считается.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	return se.StatusCode >= 500 ||
		se.StatusCode == http.StatusTooManyRequests ||
		se.StatusCode == http.StatusRequestTimeout
}

// IsNotFound сообщает, что счетчик отсутствует на сервере
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict сообщает, что счетчик с таким ID уже существует
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
