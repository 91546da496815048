// Package apperr описывает прикладные ошибки сервиса и их отображение в HTTP-статусы.
//
// Слои ниже HTTP оборачивают sentinel-ошибки через fmt.Errorf("%w: ...").
// Обработчики определяют код ответа через HTTPStatus и признак UpgradeRequired.
package apperr

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized нет или невалидна сессия.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound пользователь или анализ не найден.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded исчерпан лимит тарифа FREE.
	ErrQuotaExceeded = errors.New("free plan limit reached, upgrade required")
	// ErrInvalidInput некорректный URL, формат времени или отсутствующее поле.
	ErrInvalidInput = errors.New("invalid input")
	// ErrServiceUnavailable внешний анализатор не отвечает на проверку доступности.
	ErrServiceUnavailable = errors.New("analysis service unavailable")
	// ErrTimeout внешний вызов превысил отведенное время.
	ErrTimeout = errors.New("request timed out")
	// ErrInternal все остальное.
	ErrInternal = errors.New("internal error")
	// ErrConflict запись уже в терминальном состоянии.
	ErrConflict = errors.New("conflict")
)

// HTTPStatus возвращает HTTP-статус для ошибки.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UpgradeRequired сообщает, нужно ли предложить пользователю перейти на PRO.
func UpgradeRequired(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

var known = []error{
	ErrUnauthorized, ErrNotFound, ErrQuotaExceeded, ErrInvalidInput,
	ErrServiceUnavailable, ErrTimeout, ErrConflict,
}

// Message возвращает текст ошибки, безопасный для клиента.
// Префиксы операций до прикладной ошибки отбрасываются, внутренние ошибки скрываются.
func Message(err error) string {
	for _, target := range known {
		if !errors.Is(err, target) {
			continue
		}
		msg := err.Error()
		if i := strings.Index(msg, target.Error()); i >= 0 {
			return msg[i:]
		}
		return target.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Error()
	}
	return ErrInternal.Error()
}
