package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bazaar/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the caller identity issued by the auth service.
type Claims struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	ShopIDs []int  `json:"shop_ids,omitempty"`
	jwt.RegisteredClaims
}

// Actor maps the claims onto the engine's caller model. Unknown roles are
// treated as customers.
func (c *Claims) Actor() domain.Actor {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}

	role := c.Role
	switch role {
	case domain.RoleAdmin, domain.RoleShopOwner, domain.RoleCustomer:
	default:
		role = domain.RoleCustomer
	}

	return domain.Actor{ID: id, Role: role, ShopIDs: c.ShopIDs}
}

// JWTService validates tokens issued with a shared HMAC secret.
type JWTService struct {
	secretKey []byte
	expiry    time.Duration
}

func NewJWTService(secretKey string, expiry time.Duration) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		expiry:    expiry,
	}
}

// GenerateToken signs a token for the actor. Token issuance belongs to the
// auth service; this exists for tooling and tests.
func (s *JWTService) GenerateToken(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  actor.ID,
		Role:    actor.Role,
		ShopIDs: actor.ShopIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   actor.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
