package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-api/internal/auth"
	"github.com/spec-kit/storefront-api/internal/config"
	"github.com/spec-kit/storefront-api/internal/domain"
	"github.com/spec-kit/storefront-api/internal/events"
	"github.com/spec-kit/storefront-api/internal/repository"
)

// AuthService coordinates registration, login and credential changes.
type AuthService struct {
	users     repository.UserRepository
	hasher    *auth.Hasher
	bootstrap *auth.AdminBootstrap
	throttle  *auth.LoginThrottle
	events    events.Dispatcher
	logger    *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Throttle *auth.LoginThrottle
	Events   events.Dispatcher
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Events
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(nil)
	}
	return &AuthService{
		users:     deps.UserRepo,
		hasher:    auth.NewHasher(cfg.HashCost),
		bootstrap: auth.NewAdminBootstrap(deps.UserRepo),
		throttle:  deps.Throttle,
		events:    dispatcher,
		logger:    logger,
	}
}

// Register creates an account. The first account ever created is an admin.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, auth.ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        repository.NormalizeEmail(email),
		PasswordHash: hash,
	}
	role, err := s.bootstrap.Provision(ctx, func(role domain.Role) error {
		user.Role = role
		return s.users.Create(ctx, user)
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, auth.ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	actor := events.Actor{SubjectID: user.ID, Role: role}
	s.publish(ctx, events.EventUserRegistered, actor, events.EmailPayload{Email: user.Email})
	if role == domain.RoleAdmin {
		s.publish(ctx, events.EventAdminBootstrapped, actor, events.EmailPayload{Email: user.Email})
	}
	return user, nil
}

// Login verifies credentials. Every failure is ErrInvalidCredentials so the
// caller cannot tell which part was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if err := s.throttle.Check(ctx, email); err != nil {
		s.publish(ctx, events.EventLoginThrottled, events.Actor{}, events.EmailPayload{Email: email})
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		// Spend the same hashing work as a real comparison.
		_ = s.hasher.Compare(s.dummy(), password)
		s.loginFailed(ctx, email, "unknown_email")
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		reason := "mismatch"
		if errors.Is(err, auth.ErrMalformedCredentialRecord) {
			reason = "malformed_record"
			s.logger.Warn("stored password hash unreadable",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}
		s.loginFailed(ctx, email, reason)
		return nil, auth.ErrInvalidCredentials
	}

	s.throttle.Reset(ctx, email)
	s.publish(ctx, events.EventLoginSucceeded, events.Actor{SubjectID: user.ID, Role: user.Role}, nil)
	return user, nil
}

// Logout records the logout. Sessions are stateless, so nothing is revoked.
func (s *AuthService) Logout(ctx context.Context, identity domain.Identity) {
	s.publish(ctx, events.EventLoggedOut, actorOf(identity), nil)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, identity domain.Identity, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, auth.ErrMalformedCredentialRecord) {
			s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		}
		return auth.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.publish(ctx, events.EventPasswordChanged, actorOf(identity), nil)
	return nil
}

// UpdateProfile changes name and email. The password hash is left untouched.
func (s *AuthService) UpdateProfile(ctx context.Context, identity domain.Identity, name, email string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		return nil, err
	}
	user.Name = name
	user.Email = repository.NormalizeEmail(email)

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, auth.ErrEmailTaken
		}
		return nil, err
	}

	s.publish(ctx, events.EventProfileUpdated, actorOf(identity), events.EmailPayload{Email: user.Email})
	return user, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.throttle.Fail(ctx, email)
	s.publish(ctx, events.EventLoginFailed, events.Actor{}, events.LoginFailedPayload{Email: email, Reason: reason})
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, actor events.Actor, payload interface{}) {
	_ = s.events.Publish(ctx, events.Event{Type: eventType, Actor: actor, Payload: payload})
}

// dummy returns a valid hash at the configured cost, computed once.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("storefront-dummy-password")
		if err != nil {
			s.logger.Error("compute dummy hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func actorOf(identity domain.Identity) events.Actor {
	return events.Actor{SubjectID: identity.SubjectID, Role: identity.Role}
}
