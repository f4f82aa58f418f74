package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ingestIssuer   = "governance-ledger"
	ingestAudience = "ledger-ingest"

	ctxIngestClaims = "ingest_claims"
)

// IngestClaims are the JWT claims carried by producers that append entries
// over HTTP.
type IngestClaims struct {
	jwt.RegisteredClaims
}

// IngestTokenIssuer mints and verifies HS256 ingest tokens.
type IngestTokenIssuer struct {
	key []byte
	ttl time.Duration
}

// NewIngestTokenIssuer creates an issuer keyed by secret. ttl defaults to one hour.
func NewIngestTokenIssuer(secret string, ttl time.Duration) (*IngestTokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("ingest secret must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IngestTokenIssuer{key: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed ingest token for subject.
func (i *IngestTokenIssuer) Issue(subject string) (string, error) {
	now := time.Now().UTC()
	claims := IngestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ingestIssuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{ingestAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign ingest token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an ingest token.
func (i *IngestTokenIssuer) Verify(tokenStr string) (*IngestClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&IngestClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.key, nil
		},
		jwt.WithIssuer(ingestIssuer),
		jwt.WithAudience(ingestAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify ingest token: %w", err)
	}
	claims, ok := token.Claims.(*IngestClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid ingest token claims")
	}
	return claims, nil
}

// RequireIngestToken rejects requests without a valid Bearer ingest token and
// stores the claims on the context.
func RequireIngestToken(tokens *IngestTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxIngestClaims, claims)
		c.Next()
	}
}

// IngestClaimsFromCtx returns the claims stored by RequireIngestToken.
func IngestClaimsFromCtx(c *gin.Context) *IngestClaims {
	v, _ := c.Get(ctxIngestClaims)
	claims, _ := v.(*IngestClaims)
	return claims
}
