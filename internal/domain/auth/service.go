// internal/domain/auth/service.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/session"
	jwtauth "github.com/your-org/storefront-gateway/internal/pkg/auth"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
)

var (
	// ErrNotAuthenticated is returned when the session holds no usable token
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned when the commerce API rejects a login
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Caller is the subset of the commerce client the auth service needs
type Caller interface {
	DoJSON(ctx context.Context, method, path, token string, body, out interface{}) error
}

// CartClearer empties a session's cart
type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// Credentials is a login request
type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Shopper is the authenticated identity stored for a session
type Shopper struct {
	Token  string `json:"-"`
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// LoginResult is the outcome of a successful login with the pending navigation hint
type LoginResult struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Redirect string `json:"redirect,omitempty"`
	Checkout bool   `json:"checkout"`
}

type loginResponse struct {
	Token  string          `json:"token"`
	UserID json.RawMessage `json:"userId"`
}

// Service implements the auth token contract over the session store
type Service struct {
	api    Caller
	store  *session.Store
	cart   CartClearer
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a new auth service
func NewService(api Caller, store *session.Store, cart CartClearer, logger logrus.FieldLogger) *Service {
	return &Service{
		api:    api,
		store:  store,
		cart:   cart,
		logger: logger,
		now:    time.Now,
	}
}

// Login authenticates against the commerce API and stores the token and identity in the session.
// The post-login navigation hint, if any, is returned and cleared.
func (s *Service) Login(ctx context.Context, sessionID string, creds Credentials) (*LoginResult, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))

	var resp loginResponse
	err := s.api.DoJSON(ctx, http.MethodPost, "/auth/login", "", Credentials{Email: email, Password: creds.Password}, &resp)
	if err != nil {
		var apiErr *commerce.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}

	userID := normalizeID(resp.UserID)
	if resp.Token == "" || userID == "" {
		return nil, fmt.Errorf("login failed: incomplete response from auth service")
	}

	for key, value := range map[string]string{
		session.KeyAuthToken: resp.Token,
		session.KeyUserID:    userID,
		session.KeyUserEmail: email,
	} {
		if err := s.store.Set(ctx, sessionID, key, value); err != nil {
			return nil, err
		}
	}

	result := &LoginResult{UserID: userID, Email: email}

	redirect, ok, err := s.store.Take(ctx, sessionID, session.KeyRedirectAfterLogin)
	if err != nil {
		return nil, err
	}
	if ok {
		result.Redirect = redirect
	}

	checkout, ok, err := s.store.Take(ctx, sessionID, session.KeyCheckoutAfterLogin)
	if err != nil {
		return nil, err
	}
	if ok {
		result.Checkout, _ = strconv.ParseBool(checkout)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    userID,
	}).Info("shopper logged in")

	return result, nil
}

// Verify checks the stored token with the commerce API. A rejected token is removed.
func (s *Service) Verify(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	shopper, err := s.Shopper(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var user map[string]interface{}
	if err := s.api.DoJSON(ctx, http.MethodGet, "/auth/verify", shopper.Token, nil, &user); err != nil {
		if errors.Is(err, commerce.ErrUnauthorized) {
			if rmErr := s.DropToken(ctx, sessionID); rmErr != nil {
				return nil, rmErr
			}
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if user == nil {
		user = map[string]interface{}{}
	}
	return user, nil
}

// DropToken forgets a token the commerce API has rejected; the cart is kept
func (s *Service) DropToken(ctx context.Context, sessionID string) error {
	return s.store.Remove(ctx, sessionID, session.KeyAuthToken)
}

// Logout removes the stored identity and empties the cart
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.Remove(ctx, sessionID, session.KeyAuthToken, session.KeyUserID, session.KeyUserEmail); err != nil {
		return err
	}
	return s.cart.Clear(ctx, sessionID)
}

// Token returns the stored commerce token. Tokens whose exp has passed count as absent.
func (s *Service) Token(ctx context.Context, sessionID string) (string, error) {
	token, ok, err := s.store.Get(ctx, sessionID, session.KeyAuthToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", ErrNotAuthenticated
	}
	if jwtauth.TokenExpired(token, s.now()) {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// Shopper returns the stored token and identity
func (s *Service) Shopper(ctx context.Context, sessionID string) (*Shopper, error) {
	token, err := s.Token(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	userID, _, err := s.store.Get(ctx, sessionID, session.KeyUserID)
	if err != nil {
		return nil, err
	}
	email, _, err := s.store.Get(ctx, sessionID, session.KeyUserEmail)
	if err != nil {
		return nil, err
	}
	return &Shopper{Token: token, UserID: userID, Email: email}, nil
}

// RememberReturnPath records where to send the shopper after login
func (s *Service) RememberReturnPath(ctx context.Context, sessionID, path string, checkout bool) error {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		path = "/"
	}
	if err := s.store.Set(ctx, sessionID, session.KeyRedirectAfterLogin, path); err != nil {
		return err
	}
	if checkout {
		return s.store.Set(ctx, sessionID, session.KeyCheckoutAfterLogin, "true")
	}
	return s.store.Remove(ctx, sessionID, session.KeyCheckoutAfterLogin)
}

func normalizeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
