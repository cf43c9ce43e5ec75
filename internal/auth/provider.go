package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
)

// Claims is the identity carried by a validated token
type Claims struct {
	UserID string
}

// Provider validates bearer tokens. Users are provisioned separately; a
// valid token only proves who the caller is, not what they may do.
type Provider interface {
	GetProvider() types.AuthProvider
	ValidateToken(token string) (*Claims, error)
}

func NewProvider(cfg *config.Configuration) Provider {
	switch cfg.Auth.Provider {
	case types.AuthProviderSupabase:
		return NewSupabaseAuth(cfg)
	default:
		return NewLocalAuth(cfg)
	}
}

// parseHMAC parses an HS256 token and returns its claims
func parseHMAC(token, secret string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid or expired token").
			Mark(ierr.ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid or expired token").
			Mark(ierr.ErrUnauthorized)
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, key string) (string, error) {
	v, ok := claims[key].(string)
	if !ok || v == "" {
		return "", ierr.NewErrorf("token missing %s claim", key).
			WithHint("Invalid token").
			Mark(ierr.ErrUnauthorized)
	}
	return v, nil
}
