package auth

import (
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/types"
)

// supabaseAuth validates access tokens issued by Supabase Auth. They are
// HS256 tokens signed with the project's JWT secret and carry the user in sub.
type supabaseAuth struct {
	secret string
}

func NewSupabaseAuth(cfg *config.Configuration) Provider {
	return &supabaseAuth{secret: cfg.Auth.Secret}
}

func (s *supabaseAuth) GetProvider() types.AuthProvider {
	return types.AuthProviderSupabase
}

func (s *supabaseAuth) ValidateToken(token string) (*Claims, error) {
	claims, err := parseHMAC(token, s.secret)
	if err != nil {
		return nil, err
	}
	userID, err := claimString(claims, "sub")
	if err != nil {
		return nil, err
	}
	return &Claims{UserID: userID}, nil
}
