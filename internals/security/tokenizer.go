package security

import (
	"errors"
	"slices"
	"strings"
	"time"

	"pulsewatch/config"
	"pulsewatch/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 30 * time.Minute

type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(authCfg *config.AuthConfig) (*TokenService, error) {
	if authCfg == nil || authCfg.Secret == "" {
		return nil, errors.New("auth secret is required")
	}
	ttl := authCfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(authCfg.Secret),
		issuer: authCfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// GenerateAccessToken issues a token for an owner. Accounts live elsewhere;
// this is used by operators and tests.
func (ts *TokenService) GenerateAccessToken(ownerID uuid.UUID, scopes ...string) (string, error) {
	now := ts.now()
	claims := RequestClaims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			Issuer:    ts.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

func (ts *TokenService) ValidateAccessToken(accessToken string) (*RequestClaims, error) {
	const op string = "service.token.validate_access_token"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}

	claims := &RequestClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return ts.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, &apperror.Error{
			Kind:    apperror.Unauthorised,
			Op:      op,
			Err:     err,
			Message: "invalid token",
		}
	}
	return claims, nil
}

// OwnerID parses the subject claim.
func (c *RequestClaims) OwnerID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func (c *RequestClaims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}
