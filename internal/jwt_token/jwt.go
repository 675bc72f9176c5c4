package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
)

// Claims are the access token claims: who the actor is and which
// authorization class they act under.
type Claims struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and validates access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken issues an HS256 token for the actor.
func (s *JWTService) GenerateAccessToken(actorID id.UserID, role id.ActorRole, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID: actorID.String(),
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Actor extracts the typed actor id and role from a validated token.
func (s *JWTService) Actor(tokenString string) (id.UserID, id.ActorRole, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return id.UserID{}, "", err
	}
	actorID, err := id.ParseUserID(claims.ActorID)
	if err != nil {
		return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	role, err := id.ParseActorRole(claims.Role)
	if err != nil {
		return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return actorID, role, nil
}
