package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/immxrtalbeast/supportchat/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

//go:generate mockgen -source=jwt.go -destination=mocks/mock_authenticator.go -package=mocks

// Authenticator turns a bearer token into a principal.
type Authenticator interface {
	Verify(token string) (domain.Principal, error)
}

type Claims struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewJWTManager(secret string, ttl time.Duration, issuer string) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, issuer: issuer}, nil
}

// Issue signs a staff token for the operator with the given id.
func (m *JWTManager) Issue(staffID, name string) (string, error) {
	if staffID == "" {
		return "", errors.New("staff id is empty")
	}
	now := time.Now()
	claims := Claims{
		Name: name,
		Role: domain.RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   staffID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTManager) Verify(tokenString string) (domain.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrExpiredToken
		}
		return domain.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Principal{}, ErrInvalidToken
	}
	if claims.Role != domain.RoleStaff {
		return domain.Principal{}, ErrInvalidToken
	}
	return domain.StaffPrincipal(claims.Subject, claims.Name), nil
}
