// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer token authentication. A request must carry
// "Authorization: Bearer <jwt>" signed with the shared HMAC secret; the token
// subject becomes the user identity stored under the "userID" context key.
//
// Every failure (missing header, bad scheme, bad signature, expired token,
// wrong issuer, empty subject) produces the same 401 body so callers cannot
// tell which check failed.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ctxKeyUserID is where the authenticated subject is stored.
const ctxKeyUserID = "userID"

// Claims is the token payload. The user identity is the standard "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthOptions configures Auth.
type AuthOptions struct {
	// Secret is the HMAC key shared with the token issuer.
	Secret []byte
	// Issuer, when non-empty, must match the "iss" claim.
	Issuer string
	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

var errNoSubject = errors.New("token has no subject")

// Auth rejects requests without a valid bearer token.
func Auth(opts AuthOptions) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}
		uid, err := verify(parser, opts.Secret, raw)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("bearer token rejected")
			unauthorized(c)
			return
		}

		c.Set(ctxKeyUserID, uid)

		// Enrich the request-scoped logger with the identity.
		l := LoggerFrom(c).With().Str("user_id", uid).Logger()
		c.Set(ctxKeyLogger, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()
	}
}

// UserID returns the authenticated user, or "" before Auth has run.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MintToken issues an HS256 token for userID valid for ttl. It is used by
// the CLI and tests; production tokens come from the identity provider.
func MintToken(secret []byte, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verify(parser *jwt.Parser, secret []byte, raw string) (string, error) {
	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errNoSubject
	}
	return sub, nil
}

func bearerToken(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": requestIDOf(c),
		"code":       "unauthorized",
		"message":    "authentication required",
	})
}
