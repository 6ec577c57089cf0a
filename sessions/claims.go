package sessions

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/pkg/errors"
)

// AccessClaims are the identity claims carried by a platform access token.
type AccessClaims struct {
	Sub       string
	Email     string
	Name      string
	Provider  string
	Providers []string
	Metadata  map[string]any
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// ParseAccessToken extracts claims from an access token without verifying its
// signature. Verification belongs to the platform that issued the token.
func ParseAccessToken(rawToken string) (*AccessClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, clienterrors.ErrInvalidToken
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[ParseAccessToken] ParseUnverified")
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[ParseAccessToken] error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, clienterrors.ErrMissingSubject
	}
	email, _ := claims["email"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	ac := &AccessClaims{
		Sub:   sub,
		Email: email,
	}
	if exp > 0 {
		ac.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat > 0 {
		ac.IssuedAt = time.Unix(int64(iat), 0)
	}

	if appMetadata, ok := claims["app_metadata"].(map[string]any); ok {
		ac.Provider, _ = appMetadata["provider"].(string)
		if providers, ok := appMetadata["providers"].([]any); ok {
			ac.Providers = utils.ToStringSlice(providers)
		}
	}
	if userMetadata, ok := claims["user_metadata"].(map[string]any); ok {
		ac.Metadata = userMetadata
		for _, key := range []string{"full_name", "name"} {
			if name, ok := userMetadata[key].(string); ok && name != "" {
				ac.Name = name
				break
			}
		}
	}

	return ac, nil
}

// FromTokens builds a session from a freshly issued token pair.
func FromTokens(accessToken, refreshToken string) (*Session, error) {
	claims, err := ParseAccessToken(accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[FromTokens] ParseAccessToken")
	}
	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    claims.ExpiresAt,
		User:         claims.User(),
	}, nil
}

// User returns the identity record described by the claims.
func (c *AccessClaims) User() *User {
	return &User{
		ID:        c.Sub,
		Email:     c.Email,
		Name:      c.Name,
		Provider:  c.Provider,
		Providers: c.Providers,
		Metadata:  c.Metadata,
	}
}
