// Package session проверяет сессионные JWT, выпущенные внешним провайдером идентификации.
//
// Поддерживаются два режима: общий секрет HS256 и ключи провайдера по JWKS.
// Сервис токены не выдает, Maker нужен для локальной разработки и тестов.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/comment-analytics/internal/config"
)

const defaultLeeway = 30 * time.Second

// Claims данные пользователя из сессионного токена.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID возвращает идентификатор пользователя из claim sub.
func (c *Claims) UserID() string {
	return c.Subject
}

// Verifier проверяет подпись и срок действия сессионного токена.
type Verifier struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

// NewVerifier создает Verifier по настройкам сессии.
// При заданном JWKSURL ключи берутся у провайдера, иначе используется общий секрет.
func NewVerifier(cfg config.Session) (*Verifier, error) {
	const op = "session.NewVerifier"

	opts := []jwt.ParserOption{jwt.WithLeeway(defaultLeeway), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	if cfg.JWKSURL != "" {
		kf, err := keyfunc.NewDefault([]string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("%s: init jwks: %w", op, err)
		}
		opts = append(opts, jwt.WithValidMethods([]string{
			jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name,
			jwt.SigningMethodES256.Name,
		}))
		return &Verifier{parser: jwt.NewParser(opts...), keyFunc: kf.Keyfunc}, nil
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("%s: either jwks_url or jwt_secret_key must be set", op)
	}
	secret := []byte(cfg.JWTSecretKey)
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	return &Verifier{
		parser: jwt.NewParser(opts...),
		keyFunc: func(_ *jwt.Token) (any, error) {
			return secret, nil
		},
	}, nil
}

// Verify разбирает токен и возвращает его claims.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	const op = "session.Verify"

	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, fmt.Errorf("%s: empty token", op)
	}
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("token missing sub"))
	}
	return claims, nil
}

// Maker выпускает HS256 токены, совместимые с Verifier в режиме общего секрета.
type Maker struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewMaker создаёт Maker на основе секретного ключа и TTL.
func NewMaker(secretKey string, ttl time.Duration) *Maker {
	return &Maker{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// GenerateToken создает токен для пользователя.
func (m *Maker) GenerateToken(userID, email, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}
