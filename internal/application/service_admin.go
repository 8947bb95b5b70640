package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

// CreateUser provisions an account. The Idempotency-Key, when present, makes
// the mutation replay-safe across client retries.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest, idempotencyKey string) (CreateUserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return CreateUserResponse{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Email) == "" {
		return CreateUserResponse{}, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return CreateUserResponse{}, err
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = s.cfg.DefaultRole
	}

	if idempotencyKey != "" {
		if err := s.idempotency.Reserve(ctx, idempotencyKey, hashRequest(req), s.nowFn().Add(7*24*time.Hour)); err != nil {
			return CreateUserResponse{}, fmt.Errorf("%w: idempotency key already used", domain.ErrConflict)
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return CreateUserResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	user, err := s.users.Create(ctx, ports.CreateUserParams{
		Username:            username,
		FullName:            strings.TrimSpace(req.FullName),
		Email:               strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:        hash,
		RoleName:            role,
		ForcePasswordUpdate: req.ForcePasswordUpdate,
		ExpirationDate:      s.passwordExpirationFrom(now),
		CreatedAtUTC:        now,
	})
	if err != nil {
		return CreateUserResponse{}, err
	}

	resp := CreateUserResponse{
		Username:       user.Username,
		Role:           user.RoleName,
		ExpirationDate: user.ExpirationDate,
	}
	if idempotencyKey != "" {
		body, _ := json.Marshal(resp)
		_ = s.idempotency.Complete(ctx, idempotencyKey, 201, body, s.nowFn())
	}
	return resp, nil
}

// UnlockAccount clears the lockout and the counter without touching the
// password. The account stays subject to expiry and forced-update rules.
func (s *Service) UnlockAccount(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	return s.users.Unlock(ctx, username, s.nowFn())
}

// ForcePasswordUpdate flags the account so the next login routes to the
// change-password flow before anything else.
func (s *Service) ForcePasswordUpdate(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	return s.users.SetForcePasswordUpdate(ctx, username, true, s.nowFn())
}

// ListLoginHistory returns the audit trail for one principal, newest first.
func (s *Service) ListLoginHistory(ctx context.Context, username string, q LoginHistoryQuery) ([]LoginHistoryItem, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	offset := (q.Page - 1) * q.Limit

	attempts, err := s.audit.ListByUsername(ctx, username, q.Limit, offset)
	if err != nil {
		return nil, err
	}

	result := make([]LoginHistoryItem, 0, len(attempts))
	for _, attempt := range attempts {
		result = append(result, LoginHistoryItem{
			ID:            attempt.ID,
			Timestamp:     attempt.AttemptAt,
			Success:       attempt.Success,
			FailureReason: attempt.FailureReason,
			IPAddress:     attempt.IPAddress,
			Location:      attempt.Location,
		})
	}
	return result, nil
}

// Profile assembles the caller-facing view of a principal, including the
// effective permission keys resolved from the live graph.
func (s *Service) Profile(ctx context.Context, username string) (MeResponse, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return MeResponse{}, err
	}
	perms, err := s.roles.PermissionsForRole(ctx, user.RoleName)
	if err != nil {
		return MeResponse{}, err
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key())
	}
	return MeResponse{
		Username:            user.Username,
		FullName:            user.FullName,
		Email:               user.Email,
		Role:                user.RoleName,
		Permissions:         keys,
		ForcePasswordUpdate: user.ForcePasswordUpdate,
		ExpirationDate:      user.ExpirationDate,
		LastLogin:           user.LastLogin,
	}, nil
}
