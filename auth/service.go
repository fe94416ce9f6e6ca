package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAdministratorNotFound is returned when no administrator row matches.
	ErrAdministratorNotFound = errors.New("auth: administrator not found")
)

const defaultTokenTTL = 12 * time.Hour

// AdministratorReader abstracts repository access for the service.
type AdministratorReader interface {
	GetByEmail(ctx context.Context, email string) (Administrator, error)
}

// Service authenticates the administrator for the HTTP admin surface.
type Service struct {
	repo      AdministratorReader
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates a new authentication service.
func NewService(repo AdministratorReader, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  defaultTokenTTL,
	}
}

// Login authenticates the administrator and returns a signed session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	admin, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrAdministratorNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(admin)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, PartyID: admin.PartyID}, nil
}

// VerifyToken validates a session token and returns the party identity it
// authenticates. Callers still pass that identity through the Guard.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token")
	}
	partyID, ok := claims["party_id"].(string)
	if !ok || partyID == "" {
		return "", fmt.Errorf("auth: invalid party_id in token")
	}
	return partyID, nil
}

// HashPassword produces the bcrypt hash stored for the administrator.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("auth: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) generateToken(admin Administrator) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      admin.ID,
		"party_id": admin.PartyID,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
