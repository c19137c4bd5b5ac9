package auth

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// JWTService implementación del TokenService usando JWT (HS256)
type JWTService struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
	audience       string
}

var _ TokenService = (*JWTService)(nil)

// NewJWTService crea una nueva instancia del servicio JWT
func NewJWTService(cfg JWTConfig) *JWTService {
	defaults := DefaultConfig().JWT
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = defaults.AccessTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaults.Issuer
	}
	if cfg.Audience == "" {
		cfg.Audience = defaults.Audience
	}

	return &JWTService{
		secretKey:      []byte(cfg.SecretKey),
		accessTokenTTL: cfg.AccessTokenTTL,
		issuer:         cfg.Issuer,
		audience:       cfg.Audience,
	}
}

// JWTClaims claims personalizados para tokens de servicio
type JWTClaims struct {
	TenantID kernel.TenantID `json:"tenant_id"`
	Scopes   []string        `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// GenerateServiceToken genera un token para un servicio llamador (el helpdesk)
func (j *JWTService) GenerateServiceToken(subject string, tenantID kernel.TenantID, scopes []string) (string, error) {
	now := time.Now()

	claims := JWTClaims{
		TenantID: tenantID,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   subject,
			Audience:  []string{j.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}

	return tokenString, nil
}

// ValidateAccessToken valida y decodifica un token
func (j *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithAudience(j.audience))

	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}

	if !token.Valid {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	jwtClaims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}

	if jwtClaims.TenantID.IsEmpty() {
		return nil, ErrTokenValidationFailed().WithDetail("error", "missing tenant_id")
	}

	return &TokenClaims{
		Subject:   jwtClaims.Subject,
		TenantID:  jwtClaims.TenantID,
		Scopes:    jwtClaims.Scopes,
		IssuedAt:  jwtClaims.IssuedAt.Time,
		ExpiresAt: jwtClaims.ExpiresAt.Time,
	}, nil
}
