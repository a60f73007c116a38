package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Config holds JWT configuration
type Config struct {
	SigningKey      string
	ExpirationHours int
}

// UserClaims represents the JWT claims for an authenticated user.
// The tenant claim is literally named "TenantId"; its value is an opaque
// string used verbatim as the row-level filter for every tenant-scoped query.
type UserClaims struct {
	Email    string `json:"email"`
	UserID   uint   `json:"user_id"`
	TenantID string `json:"TenantId,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var config *Config

// Initialize sets up the JWT utility with the given configuration
func Initialize(cfg *Config) {
	config = cfg
}

// GenerateToken creates a JWT token with user, tenant and role claims
func GenerateToken(email string, userID uint, tenantID string, role string) (string, error) {
	if config == nil {
		return "", errors.New("JWT configuration not provided")
	}

	claims := UserClaims{
		Email:    email,
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(config.ExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	if config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(config.SigningKey), nil
		},
	)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
