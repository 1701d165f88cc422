package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "qrcall/pkg/domain-errors"
	authmw "qrcall/pkg/platform/middleware/auth"
)

// Claims covers both token kinds. Owner tokens carry user_id and are minted
// by the account service; caller tokens carry call_id and are minted here when
// an anonymous caller starts a call.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	CallID string `json:"call_id,omitempty"`
	jwt.RegisteredClaims
}

// Audience returns the first recognized audience on the token.
func (c *Claims) Audience() string {
	for _, aud := range c.RegisteredClaims.Audience {
		if aud == authmw.AudienceOwner || aud == authmw.AudienceCaller {
			return aud
		}
	}
	return ""
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// GenerateOwnerToken is used by tests and local tooling; production owner
// tokens come from the account service sharing the signing key.
func (s *JWTService) GenerateOwnerToken(userID string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{UserID: userID}, authmw.AudienceOwner, expiresIn)
}

// GenerateCallerToken scopes an anonymous caller to a single call.
func (s *JWTService) GenerateCallerToken(callID string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{CallID: callID}, authmw.AudienceCaller, expiresIn)
}

func (s *JWTService) sign(claims Claims, audience string, expiresIn time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		Audience:  []string{audience},
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	switch claims.Audience() {
	case authmw.AudienceOwner:
		if claims.UserID == "" {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
		}
	case authmw.AudienceCaller:
		if claims.CallID == "" {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
		}
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token audience")
	}
	return claims, nil
}

// ValidateToken satisfies the auth middleware's validator.
func (s *JWTService) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		UserID:   claims.UserID,
		CallID:   claims.CallID,
		Audience: claims.Audience(),
	}, nil
}
