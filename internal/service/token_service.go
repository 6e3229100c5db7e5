package service

import (
	"errors"
	"fmt"
	"time"

	"age-verification-gateway/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenLeeway absorbs clock drift between the gateway and the identity provider.
const tokenLeeway = 30 * time.Second

var errNotACompany = errors.New("token subject is not a company id")

// JWTTokenService checks HS256 operator tokens whose subject is a company ID.
// Production tokens come from the operator identity provider; Generate only
// serves local and demo setups.
type JWTTokenService struct {
	key    []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
}

func NewJWTTokenService(secret string, ttl time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		key:    []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(tokenLeeway),
		),
	}
}

// Generate mints a token for companyID that expires after the configured TTL.
func (s *JWTTokenService) Generate(companyID uuid.UUID) (string, time.Time, error) {
	issued := time.Now().UTC()
	expires := issued.Add(s.ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   companyID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign operator token: %w", err)
	}
	return signed, expires, nil
}

// Validate verifies signature, issuer and expiry and resolves the company.
func (s *JWTTokenService) Validate(raw string) (*ports.TokenClaims, error) {
	var claims jwt.RegisteredClaims
	if _, err := s.parser.ParseWithClaims(raw, &claims, s.keyFunc); err != nil {
		return nil, fmt.Errorf("operator token: %w", err)
	}

	companyID, err := uuid.Parse(claims.Subject)
	if err != nil || companyID == uuid.Nil {
		return nil, fmt.Errorf("operator token: %w", errNotACompany)
	}
	return &ports.TokenClaims{CompanyID: companyID}, nil
}

func (s *JWTTokenService) keyFunc(*jwt.Token) (any, error) {
	return s.key, nil
}
