package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/service/orders"
)

const callerKey = "caller"

var (
	// ErrUnauthenticated: запрос без токена к защищённому маршруту.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken: токен не прошёл проверку подписи или срока действия.
	ErrInvalidToken = errors.New("invalid access token")
)

// Claims: содержимое access-токена.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator проверяет bearer-токены, подписанные HS256.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator создаёт Authenticator с общим секретом.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Sign выпускает токен для вызывающего со сроком жизни ttl.
func (a *Authenticator) Sign(caller orders.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: caller.UserID,
		Role:   string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Parse проверяет токен и возвращает вызывающего.
// Роль из токена служит подсказкой: сервис заказов перечитывает её из справочника.
func (a *Authenticator) Parse(raw string) (orders.Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return orders.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return orders.Caller{}, ErrInvalidToken
	}
	return orders.Caller{UserID: claims.UserID, Role: domain.ParseRole(claims.Role)}, nil
}

// Middleware кладёт вызывающего в контекст gin. Запрос без заголовка
// Authorization проходит как анонимный, неверный токен даёт 401.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortWithError(c, http.StatusUnauthorized, ErrInvalidToken)
			return
		}
		caller, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, ErrInvalidToken)
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// requireAuth пропускает только аутентифицированных пользователей.
func requireAuth(c *gin.Context) {
	if !callerFrom(c).Authenticated() {
		abortWithError(c, http.StatusUnauthorized, ErrUnauthenticated)
		return
	}
	c.Next()
}

func callerFrom(c *gin.Context) orders.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(orders.Caller); ok {
			return caller
		}
	}
	return orders.Caller{}
}
