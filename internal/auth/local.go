package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
)

// localAuth issues and validates tokens with a shared secret. It backs local
// development and the migrate tool's seeded admin.
type localAuth struct {
	secret string
}

func NewLocalAuth(cfg *config.Configuration) *localAuth {
	return &localAuth{secret: cfg.Auth.Secret}
}

func (l *localAuth) GetProvider() types.AuthProvider {
	return types.AuthProviderLocal
}

func (l *localAuth) ValidateToken(token string) (*Claims, error) {
	claims, err := parseHMAC(token, l.secret)
	if err != nil {
		return nil, err
	}
	userID, err := claimString(claims, "user_id")
	if err != nil {
		return nil, err
	}
	return &Claims{UserID: userID}, nil
}

// GenerateToken signs a token for userID valid for ttl
func (l *localAuth) GenerateToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(l.secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to generate token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}
