package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"sosguard/server/models"
)

const (
	// SessionStorageKey holds the logged-in user; its absence means
	// logged out, checked once at startup
	SessionStorageKey = "sos_guard_user_v1"

	// accountStorageKey holds the device-local account record
	accountStorageKey = "sos_guard_account_v1"

	// Simulated network round trip, so the login screen behaves like the
	// real thing
	fakeNetworkDelay = 1500 * time.Millisecond
)

var ErrInvalidCredentials = errors.New("email/password is invalid")

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type account struct {
	User         User   `json:"user"`
	PasswordHash string `json:"passwordHash"`
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.StandardClaims
}

// Provider is a simulated identity provider: there is no real backend. The
// first login creates a device-local account; later logins verify against
// it. The panic-flow core never depends on this package.
type Provider struct {
	sessionSecret []byte
	delay         time.Duration
}

func NewProvider(sessionSecret string) *Provider {
	return &Provider{
		sessionSecret: []byte(sessionSecret),
		delay:         fakeNetworkDelay,
	}
}

// LogIn authenticates against the device-local account, creating it on
// first use, & persists the resulting session record.
func (p *Provider) LogIn(ctx context.Context, name, email, password string) (*Session, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	acc, err := p.findOrCreateAccount(name, email, password)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := p.encodeToken(acc.User)
	if err != nil {
		return nil, err
	}

	session := &Session{User: acc.User, Token: token}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	if err := models.UpsertRecord(SessionStorageKey, string(payload)); err != nil {
		return nil, err
	}

	return session, nil
}

// Restore returns the persisted session, or nil when logged out
func (p *Provider) Restore() (*Session, error) {
	record, err := models.FindRecord(SessionStorageKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	session := Session{}
	if err := json.Unmarshal([]byte(record.Payload), &session); err != nil {
		// A malformed session record means logged out, not an error
		return nil, nil
	}

	if _, err := p.decodeToken(session.Token); err != nil {
		return nil, nil
	}

	return &session, nil
}

// LogOut removes the persisted session record
func (p *Provider) LogOut() error {
	return models.DeleteRecord(SessionStorageKey)
}

// Verify checks a bearer token against the current session
func (p *Provider) Verify(token string) (*User, error) {
	claims, err := p.decodeToken(token)
	if err != nil {
		return nil, err
	}

	session, err := p.Restore()
	if err != nil {
		return nil, err
	}

	if session == nil || session.User.ID != claims.Subject {
		return nil, errors.New("no active session for token")
	}

	return &session.User, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (p *Provider) findOrCreateAccount(name, email, password string) (*account, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil, ErrInvalidCredentials
	}

	record, err := models.FindRecord(accountStorageKey)
	if err == nil {
		acc := account{}
		if jsonErr := json.Unmarshal([]byte(record.Payload), &acc); jsonErr == nil {
			return &acc, nil
		}
		// fall through & recreate a malformed account record
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acc := account{
		User: User{
			ID:    uuid.NewString(),
			Name:  name,
			Email: email,
		},
		PasswordHash: string(passwordHash),
	}

	payload, err := json.Marshal(acc)
	if err != nil {
		return nil, err
	}

	if err := models.UpsertRecord(accountStorageKey, string(payload)); err != nil {
		return nil, err
	}

	return &acc, nil
}

func (p *Provider) encodeToken(user User) (string, error) {
	claims := sessionClaims{
		Name: user.Name,
		StandardClaims: jwt.StandardClaims{
			Subject:  user.ID,
			IssuedAt: time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(p.sessionSecret)
}

func (p *Provider) decodeToken(tokenString string) (*sessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return p.sessionSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %v", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok {
		return nil, fmt.Errorf("unable to assert token claims")
	}

	return claims, nil
}
