package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicedesk/internal/auth/domain"
	"github.com/smallbiznis/invoicedesk/internal/auth/password"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/observability/metrics"
	"github.com/smallbiznis/invoicedesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour

	minPasswordLength = 6
)

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
	clock       clock.Clock
	metrics     *metrics.Metrics
	validate    *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		genID:       p.GenID,
		clock:       p.Clock,
		metrics:     p.Metrics,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email := normalizeEmail(req.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.ErrInvalidUser
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrInvalidUser
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleViewer
	}
	if !validRole(role) {
		return nil, domain.ErrInvalidUser
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = s.genID.Generate().String()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user := &domain.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

// SignIn returns an *AuthError for anything the caller could have done
// differently and a plain error for store faults.
func (s *Service) SignIn(ctx context.Context, provider string, values map[string]string) (*domain.SignInResult, error) {
	if provider != domain.ProviderCredentials {
		s.metrics.RecordLoginAttempt(ctx, string(domain.KindUnsupportedProvider))
		return nil, &domain.AuthError{Kind: domain.KindUnsupportedProvider}
	}

	creds := credentials{
		Email:    normalizeEmail(values["email"]),
		Password: values["password"],
	}
	if err := s.validate.Struct(creds); err != nil {
		return nil, s.denied(ctx, domain.KindCredentialsSignin, err)
	}

	user, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, s.denied(ctx, domain.KindCredentialsSignin, err)
		}
		return nil, err
	}

	if !password.Verify(creds.Password, user.PasswordHash) {
		return nil, s.denied(ctx, domain.KindCredentialsSignin, nil)
	}
	if !validRole(user.Role) {
		return nil, s.denied(ctx, domain.KindAccessDenied, nil)
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:               s.genID.Generate().String(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(values[domain.MetaUserAgent]),
		IPAddress:        strings.TrimSpace(values[domain.MetaIPAddress]),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.metrics.RecordLoginAttempt(ctx, "success")
	s.log.Info("user signed in", zap.String("user_id", user.ID))

	return &domain.SignInResult{
		Identity:  identityOf(session, user),
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) denied(ctx context.Context, kind domain.AuthErrorKind, cause error) error {
	s.metrics.RecordLoginAttempt(ctx, string(kind))
	s.log.Debug("sign in denied", zap.String("kind", string(kind)))
	return &domain.AuthError{Kind: kind, Err: cause}
}

func (s *Service) SignOut(ctx context.Context, rawToken string) error {
	session, err := s.lookup(ctx, rawToken)
	if err != nil {
		return err
	}
	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	session, err := s.lookup(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	user, err := s.repo.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}

	identity := identityOf(session, user)
	return &identity, nil
}

func (s *Service) lookup(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	return session, nil
}

func identityOf(session *domain.Session, user *domain.User) domain.Identity {
	return domain.Identity{
		SessionID: session.ID,
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
	}
}

func validRole(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleViewer
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
