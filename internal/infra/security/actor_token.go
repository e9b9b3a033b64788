package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

var (
	// ErrInvalidActorToken covers malformed, badly signed or incomplete tokens.
	ErrInvalidActorToken = errors.New("security: invalid actor token")
	// ErrExpiredActorToken indicates the token's exp has passed.
	ErrExpiredActorToken = errors.New("security: actor token expired")
)

// ActorClaims are the claims the authentication layer puts in an actor token.
type ActorClaims struct {
	jwt.RegisteredClaims
	UserType  string `json:"user_type,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
	RoleLevel *int   `json:"role_level,omitempty"`
}

// Actor is the verified identity of a caller.
type Actor struct {
	UserID  int64
	Context domain.ActorContext
}

// ActorTokenVerifier verifies HS256 actor tokens.
type ActorTokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewActorTokenVerifier constructs a verifier. An empty issuer disables the iss check.
func NewActorTokenVerifier(secret, issuer string, leeway time.Duration) (*ActorTokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("actor token secret is required")
	}
	return &ActorTokenVerifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		leeway: leeway,
	}, nil
}

// Verify parses the token and converts its claims into an actor.
func (v *ActorTokenVerifier) Verify(token string) (Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Actor{}, ErrInvalidActorToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.now != nil {
		parserOptions = append(parserOptions, jwt.WithTimeFunc(v.now))
	}
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}

	claims := &ActorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Actor{}, ErrExpiredActorToken
		}
		return Actor{}, ErrInvalidActorToken
	}
	if parsed == nil || !parsed.Valid {
		return Actor{}, ErrInvalidActorToken
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID <= 0 {
		return Actor{}, ErrInvalidActorToken
	}

	return Actor{UserID: userID, Context: claims.actorContext()}, nil
}

func (c *ActorClaims) actorContext() domain.ActorContext {
	var actor domain.ActorContext
	if raw := strings.TrimSpace(c.UserType); raw != "" {
		if ut := domain.ParseUserType(raw); ut != domain.UserTypeUnknown {
			actor.UserType = &ut
		}
	}
	if tenant := strings.TrimSpace(c.TenantID); tenant != "" {
		actor.TenantID = &tenant
	}
	if c.RoleLevel != nil {
		level := *c.RoleLevel
		actor.Level = &level
	}
	return actor
}

// SignActorToken issues an HS256 actor token. Used by tooling and tests.
func SignActorToken(secret string, claims ActorClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign actor token: %w", err)
	}
	return signed, nil
}
