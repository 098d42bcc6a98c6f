package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "Bearer "
)

var errInvalidToken = errors.New("invalid token")

// Claims identifies the caller. Admin tokens may act on any account.
type Claims struct {
	AccountID string `json:"account_id,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for id valid for ttl.
func IssueToken(secret string, id domain.AccountID, admin bool, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}

	claims := &Claims{
		AccountID: string(id),
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken checks signature and expiry and returns the claims.
func ValidateToken(raw, secret string, now func() time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.AccountID == "" && !claims.Admin {
		return nil, fmt.Errorf("%w: no account", errInvalidToken)
	}

	return claims, nil
}

func (s *Server) requireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "missing bearer token"})
			}

			claims, err := ValidateToken(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)), s.jwtSecret, s.now)
			if err != nil {
				s.log.Debug("rejected token", "path", c.Path(), "error", err.Error())
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "invalid or expired token"})
			}

			c.Set(contextClaimsKey, claims)
			return next(c)
		}
	}
}

// requireAccountAccess lets the call through when the token owns :id.
func requireAccountAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := claimsFrom(c)
		if claims == nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "missing bearer token"})
		}
		if !claims.Admin && claims.AccountID != c.Param("id") {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden", Message: "token does not grant access to this account"})
		}
		return next(c)
	}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := claimsFrom(c)
		if claims == nil || !claims.Admin {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden", Message: "admin token required"})
		}
		return next(c)
	}
}

func claimsFrom(c echo.Context) *Claims {
	claims, _ := c.Get(contextClaimsKey).(*Claims)
	return claims
}
