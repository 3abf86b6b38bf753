package jwt

import (
	"Fasting-Tracker/domain"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	DefaultIssuer = "FASTING-TRACKER"
	DefaultTTL    = 120 * time.Minute
)

type (
	// JWTService is the auth collaborator: it resolves a bearer token into an
	// identity and never exposes raw credentials.
	JWTService interface {
		GenerateToken(identity domain.Identity) (string, error)
		ResolveIdentity(token string) (domain.Identity, error)
	}

	jwtUserClaim struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Role   string `json:"role"`
		jwt.RegisteredClaims
	}

	jwtService struct {
		secretKey string
		issuer    string
		ttl       time.Duration
		now       func() time.Time
	}
)

func NewJWTService(secretKey string) JWTService {
	return &jwtService{
		secretKey: secretKey,
		issuer:    DefaultIssuer,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
}

func (j *jwtService) GenerateToken(identity domain.Identity) (string, error) {
	if identity.ID == "" {
		return "", fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}
	now := j.now()
	claims := jwtUserClaim{
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

func (j *jwtService) parseToken(t_ *jwt.Token) (any, error) {
	if _, ok := t_.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t_.Header["alg"])
	}
	return []byte(j.secretKey), nil
}

func (j *jwtService) ResolveIdentity(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrTokenNotFound
	}

	t_Token, err := jwt.ParseWithClaims(token, &jwtUserClaim{}, j.parseToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrTokenExpired
		}
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	if !t_Token.Valid {
		return domain.Identity{}, domain.ErrTokenInvalid
	}

	claims := t_Token.Claims.(*jwtUserClaim)
	if claims.UserID == "" {
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	return domain.Identity{ID: claims.UserID, Email: claims.Email}, nil
}
