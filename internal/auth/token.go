package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// ErrMalformedToken is matched by every DecodeError.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the typed view of a decoded credential.
type Claims struct {
	SubjectID string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns the time left before expiry, never negative.
func (c Claims) Remaining(now time.Time) time.Duration {
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the credential is past its expiry at now.
func (c Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// DecodeError explains why a token could not be introspected.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token: %s: %v", e.Reason, e.Err)
	}
	return "malformed token: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedToken
}

var unverifiedParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// DecodeToken reads the claims of a three-segment token without checking its
// signature. The result is only fit for UI decisions; the issuer stays the
// trust boundary.
func DecodeToken(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, &DecodeError{Reason: "empty token"}
	}
	if strings.Count(token, ".") != 2 {
		return Claims{}, &DecodeError{Reason: "token must have three segments"}
	}

	raw := jwt.MapClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, raw); err != nil {
		// an unknown alg only means we could not verify, which we never do
		if !errors.Is(err, jwt.ErrTokenUnverifiable) {
			return Claims{}, &DecodeError{Reason: "undecodable payload", Err: err}
		}
	}
	return claimsFromMap(raw)
}

func claimsFromMap(raw jwt.MapClaims) (Claims, error) {
	sub, ok := raw["sub"].(string)
	if !ok || strings.TrimSpace(sub) == "" {
		return Claims{}, &DecodeError{Reason: "missing claim: sub"}
	}
	role, ok := raw["role"].(string)
	if !ok || strings.TrimSpace(role) == "" {
		return Claims{}, &DecodeError{Reason: "missing claim: role"}
	}
	exp, ok := raw["exp"].(float64)
	if !ok {
		return Claims{}, &DecodeError{Reason: "claim exp must be a number"}
	}

	claims := Claims{
		SubjectID: sub,
		Role:      domain.ParseRole(role),
		ExpiresAt: numericTime(exp),
	}
	if iatRaw, present := raw["iat"]; present {
		iat, ok := iatRaw.(float64)
		if !ok {
			return Claims{}, &DecodeError{Reason: "claim iat must be a number"}
		}
		claims.IssuedAt = numericTime(iat)
	}
	return claims, nil
}

func numericTime(v float64) time.Time {
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// TokenManager handles issuing and validating signed tokens. The portal itself
// never verifies signatures; the mock identity service does.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// TTL returns the lifetime of issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// SignedClaims describes the signed payload.
type SignedClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a token for the subject.
func (tm *TokenManager) GenerateToken(subjectID string, role domain.Role) (string, time.Time, error) {
	return tm.GenerateTokenAt(subjectID, role, time.Now())
}

// GenerateTokenAt signs a token as if issued at issuedAt.
func (tm *TokenManager) GenerateTokenAt(subjectID string, role domain.Role, issuedAt time.Time) (string, time.Time, error) {
	issuedAt = issuedAt.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &SignedClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*SignedClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SignedClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*SignedClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
