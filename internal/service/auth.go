package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/port"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrInvalidCreds = errors.New("invalid credentials")
)

const tokenTTL = 7 * 24 * time.Hour

// AuthService checks API keys against a static set loaded at startup and
// issues signed admin tokens backed by the user store.
type AuthService struct {
	users     port.UserStore
	secretKey string
	apiKeys   map[string]struct{}
}

func NewAuthService(users port.UserStore, secretKey string, apiKeys []string) *AuthService {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &AuthService{
		users:     users,
		secretKey: secretKey,
		apiKeys:   keys,
	}
}

// ValidAPIKey reports whether the key is in the configured set. Comparison
// is constant-time per candidate.
func (s *AuthService) ValidAPIKey(key string) bool {
	if key == "" {
		return false
	}
	for k := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// EnsureAdmin seeds the admin account on first run. Existing accounts are
// left untouched.
func (s *AuthService) EnsureAdmin(username, password string) error {
	has, err := s.users.HasUser()
	if err != nil {
		return err
	}
	if has || username == "" || password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.CreateUser(username, string(hash))
}

// Login validates credentials and returns a signed token.
func (s *AuthService) Login(username, password string) (string, error) {
	user, err := s.users.GetUser(username)
	if err != nil {
		return "", ErrInvalidCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCreds
	}
	return s.signToken(user.ID, time.Now()), nil
}

func (s *AuthService) signToken(userID int64, issuedAt time.Time) string {
	timestamp := strconv.FormatInt(issuedAt.Unix(), 10)
	id := strconv.FormatInt(userID, 10)
	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(timestamp + ":" + id))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return timestamp + ":" + id + ":" + signature
}

// ValidateToken verifies the signature and expiry and resolves the user.
func (s *AuthService) ValidateToken(token string) (*domain.User, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	timestamp, idStr, signature := parts[0], parts[1], parts[2]

	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	mac := hmac.New(sha256.New, []byte(s.secretKey))
	mac.Write([]byte(timestamp + ":" + idStr))
	expected := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, ErrInvalidToken
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if time.Now().After(time.Unix(ts, 0).Add(tokenTTL)) {
		return nil, ErrExpiredToken
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}
