package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/identity"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired identity token")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidJoinCode    = errors.New("unknown team join code")
	ErrInvalidRole        = errors.New("role must be doctor or secretaria")
)

// TokenVerifier checks identity-provider ID tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*identity.Claims, error)
}

type AuthService struct {
	store    remote.Store
	cfg      *config.Config
	verifier TokenVerifier
}

func NewAuthService(store remote.Store, cfg *config.Config, verifier TokenVerifier) *AuthService {
	return &AuthService{
		store:    store,
		cfg:      cfg,
		verifier: verifier,
	}
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: email required and password must be at least 8 characters", ErrInvalidInput)
	}

	if _, err := s.findByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.provision(ctx, remote.NewID(), email, string(hash), req.JoinCode, req.TeamName)
	if err != nil {
		return nil, err
	}
	return s.IssueSession(user)
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.IssueSession(user)
}

// SessionLogin trades a verified ID token for a session. An unknown subject
// is linked to an existing account only through a verified email; otherwise
// it is provisioned the same way Register does.
func (s *AuthService) SessionLogin(ctx context.Context, req *dto.SessionLoginRequest) (*dto.AuthResponse, error) {
	if req.IDToken == "" {
		return nil, fmt.Errorf("%w: idToken is required", ErrInvalidInput)
	}
	if s.verifier == nil {
		return nil, ErrInvalidToken
	}

	claims, err := s.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		slog.Warn("identity token verification failed", "error", err)
		return nil, ErrInvalidToken
	}

	user, err := s.Lookup(ctx, claims.UID)
	if err == nil {
		return s.IssueSession(user)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	// An unverified address is neither linked nor stored.
	var email string
	if claims.EmailVerified {
		email = normalizeEmail(claims.Email)
	}
	if email != "" {
		existing, err := s.findByEmail(ctx, email)
		if err == nil {
			return s.IssueSession(existing)
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	user, err = s.provision(ctx, claims.UID, email, "", req.JoinCode, req.TeamName)
	if err != nil {
		return nil, err
	}
	return s.IssueSession(user)
}

// provision creates the user and, without a join code, a new team it owns.
func (s *AuthService) provision(ctx context.Context, uid, email, passwordHash, joinCode, teamName string) (*remote.User, error) {
	user := &remote.User{
		ID:           uid,
		Email:        email,
		PasswordHash: passwordHash,
	}

	var createdTeam string
	if code := strings.ToUpper(strings.TrimSpace(joinCode)); code != "" {
		var teams []remote.Team
		if err := s.store.Find(ctx, remote.Teams, remote.Where("join_code", code), &teams); err != nil {
			return nil, upstream(err)
		}
		if len(teams) == 0 {
			return nil, ErrInvalidJoinCode
		}
		user.TeamID = teams[0].ID
		user.Role = tenant.RoleSecretaria
	} else {
		if teamName = strings.TrimSpace(teamName); teamName == "" {
			teamName = email
		}
		if teamName == "" {
			teamName = "Equipo " + uid
		}
		code, err := newJoinCode()
		if err != nil {
			return nil, err
		}
		teamID, err := s.store.Create(ctx, remote.Teams, &remote.Team{
			Name:        teamName,
			OwnerUserID: uid,
			JoinCode:    code,
		})
		if err != nil {
			return nil, upstream(err)
		}
		createdTeam = teamID
		user.TeamID = teamID
		user.Role = tenant.RoleDoctor
	}

	if _, err := s.store.Create(ctx, remote.Users, user); err != nil {
		if createdTeam != "" {
			if derr := s.store.Delete(ctx, remote.Teams, createdTeam); derr != nil {
				slog.Error("orphan team left after failed registration", "team_id", createdTeam, "error", derr)
			}
		}
		return nil, upstream(err)
	}

	slog.Info("user provisioned", "user_id", uid, "team_id", user.TeamID, "role", user.Role)
	return user, nil
}

// IssueSession signs an HS256 session token for user.
func (s *AuthService) IssueSession(user *remote.User) (*dto.AuthResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.SessionExpiry)
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &dto.AuthResponse{
		SessionToken: signed,
		ExpiresAt:    expiresAt.Unix(),
		User: dto.UserResponse{
			ID:     user.ID,
			Email:  user.Email,
			Role:   user.Role,
			TeamID: user.TeamID,
		},
	}, nil
}

func (s *AuthService) Lookup(ctx context.Context, uid string) (*remote.User, error) {
	var user remote.User
	if err := s.store.Get(ctx, remote.Users, uid, &user); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, upstream(err)
	}
	return &user, nil
}

// SetRole assigns a role by email. Operator tool; no session involved.
func (s *AuthService) SetRole(ctx context.Context, email, role string) (*remote.User, error) {
	if !tenant.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	user, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, remote.Users, user.ID, map[string]any{"role": role}); err != nil {
		return nil, upstream(err)
	}
	user.Role = role
	slog.Info("role assigned", "user_id", user.ID, "role", role)
	return user, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*remote.User, error) {
	if email == "" {
		return nil, ErrUserNotFound
	}
	var users []remote.User
	if err := s.store.Find(ctx, remote.Users, remote.Query{
		Where: []remote.Filter{{Field: "email", Value: email}},
		Limit: 1,
	}, &users); err != nil {
		return nil, upstream(err)
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newJoinCode() (string, error) {
	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i, b := range raw {
		raw[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(raw), nil
}
