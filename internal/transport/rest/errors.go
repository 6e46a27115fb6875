package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// ErrMalformedBody: тело запроса не разбирается как JSON.
var ErrMalformedBody = errors.New("malformed request body")

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor переводит доменную ошибку в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody скрывает текст внутренних ошибок.
func errorBody(status int, err error) errorResponse {
	if status >= http.StatusInternalServerError {
		return errorResponse{Error: http.StatusText(status)}
	}
	return errorResponse{Error: err.Error()}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorBody(status, err))
}
