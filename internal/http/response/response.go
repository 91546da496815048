// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Status принимает значения "OK" или "Error".
// Error заполняется при неуспехе, UpgradeRequired при исчерпанном лимите FREE.
// Data заполняется при успехе.
type Response struct {
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	UpgradeRequired bool   `json:"upgradeRequired,omitempty"`
	Data            any    `json:"data,omitempty"`
}

// ErrorResponse тело ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status          string `json:"status" example:"Error"`
	Error           string `json:"error" example:"invalid request body"`
	UpgradeRequired bool   `json:"upgradeRequired,omitempty" example:"false"`
}

const (
	// StatusOK статус успешного ответа.
	StatusOK = "OK"
	// StatusError статус ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// FromError переводит прикладную ошибку в HTTP-статус и тело ответа.
// Подробности внутренних ошибок клиенту не отдаются.
func FromError(err error) (int, ErrorResponse) {
	return apperr.HTTPStatus(err), ErrorResponse{
		Status:          StatusError,
		Error:           apperr.Message(err),
		UpgradeRequired: apperr.UpgradeRequired(err),
	}
}

// WriteError отправляет ответ с ошибкой через render.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := FromError(err)
	render.Status(r, code)
	render.JSON(w, r, body)
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "len":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must contain exactly %s items", err.Field(), err.Param()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
