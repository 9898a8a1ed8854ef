package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/carbon/types"
)

// ErrInvalidToken is returned when a bearer token fails validation.
var ErrInvalidToken = errors.New("api: invalid token")

// Claims are the JWT claims of a carbon caller. The subject is the caller's
// account address.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and validates HMAC-signed caller tokens.
type Authenticator struct {
	signingKey []byte
	issuer     string
}

// NewAuthenticator creates an Authenticator. An empty issuer accepts tokens
// from any issuer.
func NewAuthenticator(signingKey []byte, issuer string) *Authenticator {
	return &Authenticator{signingKey: signingKey, issuer: issuer}
}

// IssueToken signs a token that authenticates account for ttl.
func (a *Authenticator) IssueToken(account types.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(a.signingKey)
}

// Validate parses a token and returns the account it authenticates.
func (a *Authenticator) Validate(tokenString string) (types.AccountID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.signingKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return "", ErrInvalidToken
	}
	account, err := types.ParseAccountID(claims.Subject)
	if err != nil {
		return "", ErrInvalidToken
	}
	return account, nil
}

type contextKeyCaller struct{}

// CallerFrom returns the authenticated account stored by RequireAuth.
func CallerFrom(ctx context.Context) types.AccountID {
	caller, _ := ctx.Value(contextKeyCaller{}).(types.AccountID)
	return caller
}

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller types.AccountID) context.Context {
	return context.WithValue(ctx, contextKeyCaller{}, caller)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller account in the request context.
func RequireAuth(auth *Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "path", r.URL.Path)
				writeStatus(w, http.StatusUnauthorized, "unauthorized", "missing or invalid Authorization header")
				return
			}

			caller, err := auth.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token", "path", r.URL.Path, "error", err)
				writeStatus(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
		})
	}
}
