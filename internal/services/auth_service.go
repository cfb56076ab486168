package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"loadmatch/internal/domain"
	"loadmatch/internal/domain/models"
	"loadmatch/internal/notify"
	"loadmatch/internal/policy"
	"loadmatch/internal/repositories"
	"loadmatch/internal/utils"
)

type AuthService struct {
	Store    repositories.Store
	Notify   notify.Dispatcher
	Secret   []byte
	TokenTTL time.Duration
	Now      func() time.Time
}

type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Session is what a successful signup or login hands back to the client.
type Session struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s AuthService) now() time.Time { return clock(s.Now).now() }

// Signup registers a customer or owner account. Accounts start unverified.
func (s AuthService) Signup(ctx context.Context, in SignupInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return Session{}, domain.ValidationError{Field: "email", Msg: "invalid email address"}
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok || role == domain.RoleAdmin {
		return Session{}, domain.ValidationError{Field: "role", Msg: "must be customer or owner"}
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	u := models.User{
		Email:        email,
		FullName:     utils.NormalizeSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var out notify.Outbox
	err = s.Store.WithTx(ctx, func(tx repositories.Repos) error {
		if err := tx.Users().Create(ctx, &u); err != nil {
			return err
		}
		_, err := s.Notify.Publish(ctx, tx.Notifications(), &out, u.ID, models.KindWelcome,
			"Welcome aboard! An administrator will verify your account shortly.", nil)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	s.Notify.Flush(ctx, &out)
	utils.LogEvent(ctx, "auth", "signup", "account created", "user_id", u.ID, "role", u.Role)
	return s.issue(u)
}

// Login checks the password and returns a fresh token. Unknown emails and wrong passwords
// produce the same error.
func (s AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	invalid := domain.UnauthorizedError{Msg: "invalid email or password"}
	u, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return Session{}, invalid
		}
		return Session{}, err
	}
	if u.Deleted() {
		return Session{}, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, invalid
	}
	utils.LogEvent(ctx, "auth", "login", "token issued", "user_id", u.ID)
	return s.issue(u)
}

func (s AuthService) issue(u models.User) (Session, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return Session{}, domain.InternalError{Msg: "sign token", Err: err}
	}
	return Session{Token: signed, TokenType: "Bearer", ExpiresAt: exp, User: u}, nil
}

// ParseToken validates a bearer token and returns the identity it carries.
func (s AuthService) ParseToken(raw string) (domain.Actor, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return domain.Actor{}, domain.UnauthorizedError{Msg: msg, Err: err}
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Actor{}, domain.UnauthorizedError{Msg: "invalid token subject"}
	}
	role, ok := domain.ParseRole(c.Role)
	if !ok {
		return domain.Actor{}, domain.UnauthorizedError{Msg: "invalid role claim"}
	}
	return domain.Actor{UserID: id, Role: role}, nil
}

// Authenticate validates the bearer token and resolves the caller against the user table.
func (s AuthService) Authenticate(ctx context.Context, raw string) (policy.Subject, error) {
	actor, err := s.ParseToken(raw)
	if err != nil {
		return policy.Subject{}, err
	}
	return ResolveSubject(ctx, s.Store.Users(), actor)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.Store.Users().GetByEmail(ctx, email); err == nil {
		return nil
	} else if !domain.IsNotFound(err) {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	now := s.now()
	u := models.User{
		Email:        email,
		FullName:     "Administrator",
		Role:         domain.RoleAdmin,
		IsVerified:   true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().Create(ctx, &u); err != nil {
		return err
	}
	utils.LogEvent(ctx, "auth", "bootstrap_admin", "admin account created", "user_id", u.ID)
	return nil
}
