package unit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/workledger/authcore/internal/application"
	"github.com/workledger/authcore/internal/domain"
	"github.com/workledger/authcore/internal/ports"
)

func TestLoginSuccessCreatesSessionAndResetsCounter(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "alice", Email: "alice@example.com", RoleName: "USER", Enabled: true, FailedLoginAttempts: 3}, "CorrectHorse1")

	res, err := f.service.Login(ctx, application.LoginRequest{
		Username:  "alice",
		Password:  "CorrectHorse1",
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.SessionID == "" {
		t.Fatalf("expected session id")
	}
	if res.RedirectPath != "/" {
		t.Fatalf("expected landing redirect, got %s", res.RedirectPath)
	}

	sess, err := f.sessions.Get(ctx, res.SessionID)
	if err != nil || sess.Username != "alice" {
		t.Fatalf("expected stored session for alice, got %v %v", sess, err)
	}

	u := f.users.get("alice")
	if u.FailedLoginAttempts != 0 || u.AccountLocked {
		t.Fatalf("expected counter reset after success, got %d locked=%v", u.FailedLoginAttempts, u.AccountLocked)
	}
	if u.LastLogin == nil {
		t.Fatalf("expected last login stamped")
	}

	last := f.audit.last()
	if !last.Success || last.Username != "alice" {
		t.Fatalf("expected success audit record, got %+v", last)
	}
}

func TestLockoutAtThresholdFiresNoticeOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "bob", Email: "bob@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")

	for i := 0; i < 4; i++ {
		_, err := f.service.Login(ctx, application.LoginRequest{Username: "bob", Password: "wrong"})
		if !errors.Is(err, domain.ErrBadCredentials) {
			t.Fatalf("attempt %d: expected bad credentials, got %v", i+1, err)
		}
	}

	// The fifth failure crosses the threshold and must surface the new state.
	_, err := f.service.Login(ctx, application.LoginRequest{Username: "bob", Password: "wrong"})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected account locked on threshold attempt, got %v", err)
	}
	if n := f.outbox.countByType("account.locked"); n != 1 {
		t.Fatalf("expected exactly one lockout notice, got %d", n)
	}

	// Further attempts fail on the locked state without another notice, even
	// with the correct password.
	_, err = f.service.Login(ctx, application.LoginRequest{Username: "bob", Password: "CorrectHorse1"})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked rejection after lockout, got %v", err)
	}
	if n := f.outbox.countByType("account.locked"); n != 1 {
		t.Fatalf("expected lockout notice to stay at one, got %d", n)
	}
}

func TestUnknownUserNeverFeedsCounter(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.service.Login(ctx, application.LoginRequest{Username: "ghost", Password: "whatever"})
		if !errors.Is(err, domain.ErrBadCredentials) {
			t.Fatalf("expected bad credentials for unknown user, got %v", err)
		}
	}
	if n := f.outbox.countByType("account.locked"); n != 0 {
		t.Fatalf("unknown user must never trigger lockout, got %d notices", n)
	}
	if last := f.audit.last(); last.FailureReason != "USER_NOT_FOUND" {
		t.Fatalf("expected USER_NOT_FOUND audit reason, got %s", last.FailureReason)
	}
}

func TestDisabledAccountRejectedWithoutCounting(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "carol", Email: "carol@example.com", RoleName: "USER", Enabled: false}, "CorrectHorse1")

	_, err := f.service.Login(ctx, application.LoginRequest{Username: "carol", Password: "CorrectHorse1"})
	if !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("expected disabled rejection, got %v", err)
	}
	if u := f.users.get("carol"); u.FailedLoginAttempts != 0 {
		t.Fatalf("disabled rejection must not count, got %d", u.FailedLoginAttempts)
	}
}

func TestGuestExpiryDoesNotLeakOnWrongPassword(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	past := time.Now().UTC().Add(-24 * time.Hour)
	f.seedUser(domain.User{Username: "visitor", Email: "visitor@example.com", RoleName: "GUEST", Enabled: true, ExpirationDate: &past}, "CorrectHorse1")

	// Wrong password on an expired guest account must look exactly like any
	// other wrong password.
	_, err := f.service.Login(ctx, application.LoginRequest{Username: "visitor", Password: "wrong"})
	if !errors.Is(err, domain.ErrBadCredentials) {
		t.Fatalf("expected bad credentials, got %v", err)
	}
	if u := f.users.get("visitor"); u.FailedLoginAttempts != 1 {
		t.Fatalf("wrong guest password should count, got %d", u.FailedLoginAttempts)
	}

	_, err = f.service.Login(ctx, application.LoginRequest{Username: "visitor", Password: "CorrectHorse1"})
	if !errors.Is(err, domain.ErrGuestPasswordExpired) {
		t.Fatalf("expected guest expiry rejection, got %v", err)
	}
	if last := f.audit.last(); last.FailureReason != "GUEST_PASSWORD_EXPIRED" {
		t.Fatalf("expected GUEST_PASSWORD_EXPIRED audit reason, got %s", last.FailureReason)
	}
}

func TestRedirectPriorityExpiredOverForcedOverSaved(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	f.seedUser(domain.User{Username: "exp", Email: "exp@example.com", RoleName: "USER", Enabled: true, ExpirationDate: &past, ForcePasswordUpdate: true}, "CorrectHorse1")
	res, err := f.service.Login(ctx, application.LoginRequest{Username: "exp", Password: "CorrectHorse1", RequestedPath: "/reports/42"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.RedirectPath != "/account/password?expired=true" {
		t.Fatalf("expired must outrank forced and saved, got %s", res.RedirectPath)
	}

	f.seedUser(domain.User{Username: "forced", Email: "forced@example.com", RoleName: "USER", Enabled: true, ForcePasswordUpdate: true}, "CorrectHorse1")
	res, err = f.service.Login(ctx, application.LoginRequest{Username: "forced", Password: "CorrectHorse1", RequestedPath: "/reports/42"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.RedirectPath != "/account/password?forced=true" {
		t.Fatalf("forced must outrank saved, got %s", res.RedirectPath)
	}

	f.seedUser(domain.User{Username: "plain", Email: "plain@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")
	res, err = f.service.Login(ctx, application.LoginRequest{Username: "plain", Password: "CorrectHorse1", RequestedPath: "/reports/42"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.RedirectPath != "/reports/42" {
		t.Fatalf("expected saved request replay, got %s", res.RedirectPath)
	}

	res, err = f.service.Login(ctx, application.LoginRequest{Username: "plain", Password: "CorrectHorse1", RequestedPath: "https://evil.example.com/"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.RedirectPath != "/" {
		t.Fatalf("external target must fall back to landing, got %s", res.RedirectPath)
	}

	res, err = f.service.Login(ctx, application.LoginRequest{Username: "plain", Password: "CorrectHorse1", RequestedPath: "//evil.example.com"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.RedirectPath != "/" {
		t.Fatalf("scheme-relative target must fall back to landing, got %s", res.RedirectPath)
	}
}

func TestUnlockRestoresAccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "dave", Email: "dave@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")

	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, application.LoginRequest{Username: "dave", Password: "wrong"})
	}
	if u := f.users.get("dave"); !u.AccountLocked {
		t.Fatalf("expected locked account after threshold failures")
	}

	if err := f.service.UnlockAccount(ctx, "dave"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	u := f.users.get("dave")
	if u.AccountLocked || u.FailedLoginAttempts != 0 {
		t.Fatalf("expected cleared lock and counter, got locked=%v attempts=%d", u.AccountLocked, u.FailedLoginAttempts)
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "dave", Password: "CorrectHorse1"}); err != nil {
		t.Fatalf("login after unlock failed: %v", err)
	}
}

func TestConcurrentFailuresLockExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "eve", Email: "eve@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.service.Login(ctx, application.LoginRequest{Username: "eve", Password: "wrong"})
		}()
	}
	wg.Wait()

	if n := f.outbox.countByType("account.locked"); n != 1 {
		t.Fatalf("expected exactly one lockout notice under concurrency, got %d", n)
	}
	if u := f.users.get("eve"); !u.AccountLocked {
		t.Fatalf("expected locked account")
	}
}

func TestSuccessFullyRehabilitatesAfterLockout(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "mona", Email: "mona@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")

	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, application.LoginRequest{Username: "mona", Password: "wrong"})
	}
	if u := f.users.get("mona"); !u.AccountLocked || u.FailedLoginAttempts != 5 {
		t.Fatalf("expected locked with counter at threshold, got %+v", u)
	}

	// Clear only the lock flag, leaving the counter at threshold: the next
	// success must still reset everything, not just stamp lastLogin.
	f.users.setLocked("mona", false)
	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "mona", Password: "CorrectHorse1"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	u := f.users.get("mona")
	if u.AccountLocked || u.FailedLoginAttempts != 0 {
		t.Fatalf("success must fully rehabilitate, got locked=%v attempts=%d", u.AccountLocked, u.FailedLoginAttempts)
	}
}

func TestIssueTokenRejectsPendingPasswordChange(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	f.seedUser(domain.User{Username: "api-exp", Email: "api-exp@example.com", RoleName: "USER", Enabled: true, ExpirationDate: &past}, "CorrectHorse1")
	_, err := f.service.IssueToken(ctx, application.LoginRequest{Username: "api-exp", Password: "CorrectHorse1"})
	if !errors.Is(err, domain.ErrPasswordExpired) {
		t.Fatalf("expected password expired rejection, got %v", err)
	}

	f.seedUser(domain.User{Username: "api-forced", Email: "api-forced@example.com", RoleName: "USER", Enabled: true, ForcePasswordUpdate: true}, "CorrectHorse1")
	_, err = f.service.IssueToken(ctx, application.LoginRequest{Username: "api-forced", Password: "CorrectHorse1"})
	if !errors.Is(err, domain.ErrPasswordChangeRequired) {
		t.Fatalf("expected password change required rejection, got %v", err)
	}

	f.seedUser(domain.User{Username: "api-ok", Email: "api-ok@example.com", RoleName: "ADMIN", Enabled: true}, "CorrectHorse1")
	res, err := f.service.IssueToken(ctx, application.LoginRequest{Username: "api-ok", Password: "CorrectHorse1"})
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if res.Token == "" || res.TokenType != "Bearer" {
		t.Fatalf("expected bearer token, got %+v", res)
	}

	claims, user, err := f.service.ValidateToken(ctx, res.Token)
	if err != nil {
		t.Fatalf("validate token failed: %v", err)
	}
	if claims.Username != "api-ok" || user.RoleName != "ADMIN" {
		t.Fatalf("unexpected claims %+v user %+v", claims, user)
	}
}

func TestValidateTokenReChecksLiveAccountState(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "frank", Email: "frank@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")

	res, err := f.service.IssueToken(ctx, application.LoginRequest{Username: "frank", Password: "CorrectHorse1"})
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}

	// Locking the account cuts off the still-valid token on the next request.
	f.users.setLocked("frank", true)
	if _, _, err := f.service.ValidateToken(ctx, res.Token); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked rejection on live re-check, got %v", err)
	}

	f.users.setLocked("frank", false)
	f.users.setEnabled("frank", false)
	if _, _, err := f.service.ValidateToken(ctx, res.Token); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("expected disabled rejection on live re-check, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "grace", Email: "grace@example.com", RoleName: "USER", Enabled: true}, "CorrectHorse1")

	res, err := f.service.Login(ctx, application.LoginRequest{Username: "grace", Password: "CorrectHorse1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	data, err := f.service.ResumeSession(ctx, res.SessionID)
	if err != nil || data.Username != "grace" {
		t.Fatalf("resume failed: %v %v", data, err)
	}

	if err := f.service.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := f.service.ResumeSession(ctx, res.SessionID); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected expired session after logout, got %v", err)
	}

	// Logout is idempotent.
	if err := f.service.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("second logout should be a no-op, got %v", err)
	}
}

func TestCompletePasswordUpdateReplaysSavedRequestOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "henry", Email: "henry@example.com", RoleName: "USER", Enabled: true, ForcePasswordUpdate: true}, "CorrectHorse1")

	res, err := f.service.Login(ctx, application.LoginRequest{Username: "henry", Password: "CorrectHorse1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	f.service.SaveRequestedPath(ctx, res.SessionID, "/expenses/7")

	target, err := f.service.CompletePasswordUpdate(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("complete password update failed: %v", err)
	}
	if target != "/expenses/7" {
		t.Fatalf("expected saved request replay, got %s", target)
	}

	sess, err := f.sessions.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("session gone after completion: %v", err)
	}
	if sess.PasswordUpdateRequired {
		t.Fatalf("expected pinned marker cleared")
	}

	// The saved path is single-use.
	target, err = f.service.CompletePasswordUpdate(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("second completion failed: %v", err)
	}
	if target != "/" {
		t.Fatalf("expected landing after saved path consumed, got %s", target)
	}
}

func TestChangePasswordFlows(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "iris", Email: "iris@example.com", RoleName: "USER", Enabled: true, ForcePasswordUpdate: true}, "CorrectHorse1")

	// Wrong current password.
	err := f.service.ChangePassword(ctx, application.ChangePasswordRequest{Username: "iris", CurrentPassword: "nope", NewPassword: "FreshSecret22"})
	if !errors.Is(err, domain.ErrBadCredentials) {
		t.Fatalf("expected bad credentials, got %v", err)
	}

	// Policy rejection.
	err = f.service.ChangePassword(ctx, application.ChangePasswordRequest{Username: "iris", CurrentPassword: "CorrectHorse1", NewPassword: "short"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected policy rejection, got %v", err)
	}

	// Reuse rejection.
	err = f.service.ChangePassword(ctx, application.ChangePasswordRequest{Username: "iris", CurrentPassword: "CorrectHorse1", NewPassword: "CorrectHorse1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected reuse rejection, got %v", err)
	}

	if err := f.service.ChangePassword(ctx, application.ChangePasswordRequest{Username: "iris", CurrentPassword: "CorrectHorse1", NewPassword: "FreshSecret22"}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	u := f.users.get("iris")
	if u.ForcePasswordUpdate {
		t.Fatalf("expected forced-update flag cleared")
	}
	if u.ExpirationDate == nil || !u.ExpirationDate.After(time.Now().UTC()) {
		t.Fatalf("expected expiry clock restarted, got %v", u.ExpirationDate)
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "iris", Password: "FreshSecret22"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestGuestCannotChangeOwnPassword(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.seedUser(domain.User{Username: "kiosk", Email: "kiosk@example.com", RoleName: "GUEST", Enabled: true}, "CorrectHorse1")

	err := f.service.ChangePassword(ctx, application.ChangePasswordRequest{Username: "kiosk", CurrentPassword: "CorrectHorse1", NewPassword: "FreshSecret22"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for guest, got %v", err)
	}
}

func TestExpiryWarningEnqueuedInsideWindow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	soon := time.Now().UTC().Add(3 * 24 * time.Hour)
	f.seedUser(domain.User{Username: "judy", Email: "judy@example.com", RoleName: "USER", Enabled: true, ExpirationDate: &soon}, "CorrectHorse1")

	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "judy", Password: "CorrectHorse1"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if n := f.outbox.countByType("password.expiring"); n != 1 {
		t.Fatalf("expected one expiry warning, got %d", n)
	}

	far := time.Now().UTC().Add(60 * 24 * time.Hour)
	f.seedUser(domain.User{Username: "karl", Email: "karl@example.com", RoleName: "USER", Enabled: true, ExpirationDate: &far}, "CorrectHorse1")
	if _, err := f.service.Login(ctx, application.LoginRequest{Username: "karl", Password: "CorrectHorse1"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if n := f.outbox.countByType("password.expiring"); n != 1 {
		t.Fatalf("expiry warning outside window must not enqueue, got %d", n)
	}
}

func TestCreateUserIdempotencyConflict(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	req := application.CreateUserRequest{
		Username: "newhire",
		FullName: "New Hire",
		Email:    "newhire@example.com",
		Password: "FreshSecret22",
		Role:     "user",
	}

	res, err := f.service.CreateUser(ctx, req, "idem-1")
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if res.Role != "USER" {
		t.Fatalf("expected role normalized to USER, got %s", res.Role)
	}

	if _, err := f.service.CreateUser(ctx, req, "idem-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected idempotency conflict on replayed key, got %v", err)
	}
}

func TestHasPermissionExactMatch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.roles.grant("ADMIN", domain.Permission{Resource: "USER", Action: "CREATE"})

	ok, err := f.service.HasPermission(ctx, "ADMIN", "USER:CREATE")
	if err != nil || !ok {
		t.Fatalf("expected grant, got ok=%v err=%v", ok, err)
	}

	ok, err = f.service.HasPermission(ctx, "ADMIN", "user:create")
	if err != nil || ok {
		t.Fatalf("permission keys are case-sensitive, got ok=%v err=%v", ok, err)
	}

	for _, key := range []string{"", "USER", "USER:", ":CREATE", "USER:CREATE:EXTRA"} {
		ok, err = f.service.HasPermission(ctx, "ADMIN", key)
		if err != nil || ok {
			t.Fatalf("malformed key %q must evaluate false, got ok=%v err=%v", key, ok, err)
		}
	}
}

func newFixture() *fixture {
	users := &fakeUsers{byName: map[string]domain.User{}}
	roles := &fakeRoles{byRole: map[string][]domain.Permission{}}
	audit := &fakeAudit{}
	outbox := &fakeOutbox{}
	idem := &fakeIdempotency{records: map[string]ports.IdempotencyRecord{}}
	sessions := &fakeSessions{byID: map[string]ports.SessionData{}}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRole:          "USER",
			FailedLoginThreshold: 5,
			SessionTTL:           30 * time.Minute,
			TokenTTL:             24 * time.Hour,
			PasswordLifetime:     90 * 24 * time.Hour,
			ExpiryWarningWindow:  7 * 24 * time.Hour,
			LandingPath:          "/",
			PasswordChangePath:   "/account/password",
		},
		Users:       users,
		Roles:       roles,
		Audit:       audit,
		Outbox:      outbox,
		Idempotency: idem,
		Sessions:    sessions,
		Hasher:      &fakeHasher{},
		TokenSigner: &fakeSigner{tokens: map[string]ports.AuthClaims{}},
		Geo:         &fakeGeo{},
	})

	return &fixture{
		service:  svc,
		users:    users,
		roles:    roles,
		audit:    audit,
		outbox:   outbox,
		sessions: sessions,
	}
}

type fixture struct {
	service  *application.Service
	users    *fakeUsers
	roles    *fakeRoles
	audit    *fakeAudit
	outbox   *fakeOutbox
	sessions *fakeSessions
}

func (f *fixture) seedUser(u domain.User, password string) {
	u.PasswordHash = "hash:" + password
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	f.users.byName[u.Username] = u
}

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]domain.User
}

func (f *fakeUsers) get(username string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byName[username]
}

func (f *fakeUsers) setLocked(username string, locked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byName[username]
	u.AccountLocked = locked
	f.byName[username] = u
}

func (f *fakeUsers) setEnabled(username string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byName[username]
	u.Enabled = enabled
	f.byName[username] = u
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[params.Username]; ok {
		return domain.User{}, domain.ErrConflict
	}
	u := domain.User{
		Username:            params.Username,
		FullName:            params.FullName,
		Email:               params.Email,
		PasswordHash:        params.PasswordHash,
		RoleName:            params.RoleName,
		Enabled:             true,
		ForcePasswordUpdate: params.ForcePasswordUpdate,
		ExpirationDate:      params.ExpirationDate,
		CreatedAt:           params.CreatedAtUTC,
		UpdatedAt:           params.CreatedAtUTC,
	}
	f.byName[u.Username] = u
	return u, nil
}

// RecordFailedAttempt mirrors the store contract: the increment and the lock
// decision happen under one lock, and an already-locked row is not touched.
func (f *fakeUsers) RecordFailedAttempt(_ context.Context, username string, threshold int, at time.Time) (ports.FailedAttemptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok || u.AccountLocked {
		return ports.FailedAttemptResult{}, domain.ErrNotFound
	}
	u.FailedLoginAttempts++
	u.AccountLocked = u.FailedLoginAttempts >= threshold
	u.UpdatedAt = at
	f.byName[username] = u
	return ports.FailedAttemptResult{
		FailedAttempts: u.FailedLoginAttempts,
		Locked:         u.AccountLocked,
		JustLocked:     u.AccountLocked,
	}, nil
}

func (f *fakeUsers) ResetAfterSuccess(_ context.Context, username string, loginAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return domain.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.AccountLocked = false
	u.LastLogin = &loginAt
	u.UpdatedAt = loginAt
	f.byName[username] = u
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, username, passwordHash string, newExpiration *time.Time, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ExpirationDate = newExpiration
	u.UpdatedAt = updatedAt
	f.byName[username] = u
	return nil
}

func (f *fakeUsers) Unlock(_ context.Context, username string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return domain.ErrNotFound
	}
	u.AccountLocked = false
	u.FailedLoginAttempts = 0
	u.UpdatedAt = at
	f.byName[username] = u
	return nil
}

func (f *fakeUsers) SetForcePasswordUpdate(_ context.Context, username string, required bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byName[username]
	if !ok {
		return domain.ErrNotFound
	}
	u.ForcePasswordUpdate = required
	u.UpdatedAt = at
	f.byName[username] = u
	return nil
}

type fakeRoles struct {
	mu     sync.Mutex
	byRole map[string][]domain.Permission
}

func (f *fakeRoles) grant(role string, perm domain.Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byRole[role] = append(f.byRole[role], perm)
}

func (f *fakeRoles) PermissionsForRole(_ context.Context, roleName string) ([]domain.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Permission{}, f.byRole[roleName]...), nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []domain.LoginAttempt
}

func (f *fakeAudit) last() domain.LoginAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return domain.LoginAttempt{}
	}
	return f.records[len(f.records)-1]
}

func (f *fakeAudit) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt.ID = int64(len(f.records) + 1)
	f.records = append(f.records, attempt)
	return nil
}

func (f *fakeAudit) ListByUsername(_ context.Context, username string, limit, offset int) ([]domain.LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LoginAttempt
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].Username == username {
			out = append(out, f.records[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (f *fakeOutbox) countByType(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

type fakeIdempotency struct {
	mu      sync.Mutex
	records map[string]ports.IdempotencyRecord
}

func (f *fakeIdempotency) Get(_ context.Context, key string) (*ports.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	cp := v
	return &cp, nil
}

func (f *fakeIdempotency) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[key]; ok {
		return domain.ErrConflict
	}
	f.records[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      "PENDING",
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.records[key]
	v.Status = "COMPLETED"
	v.ResponseCode = responseCode
	v.ResponseBody = responseBody
	v.UpdatedAt = at
	f.records[key] = v
	return nil
}

type fakeSessions struct {
	mu   sync.Mutex
	byID map[string]ports.SessionData
}

func (f *fakeSessions) Create(_ context.Context, data ports.SessionData, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.byID[id] = data
	return id, nil
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (*ports.SessionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.byID[sessionID]
	if !ok {
		return nil, domain.ErrSessionExpired
	}
	cp := data
	return &cp, nil
}

func (f *fakeSessions) Touch(_ context.Context, sessionID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[sessionID]; !ok {
		return domain.ErrSessionExpired
	}
	return nil
}

func (f *fakeSessions) SetPasswordUpdateRequired(_ context.Context, sessionID string, required bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.byID[sessionID]
	if !ok {
		return domain.ErrSessionExpired
	}
	data.PasswordUpdateRequired = required
	f.byID[sessionID] = data
	return nil
}

func (f *fakeSessions) SaveRequestedPath(_ context.Context, sessionID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.byID[sessionID]
	if !ok {
		return domain.ErrSessionExpired
	}
	data.SavedPath = path
	f.byID[sessionID] = data
	return nil
}

func (f *fakeSessions) Destroy(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, sessionID)
	return nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hash:" + password, nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hash:"+password {
		return domain.ErrBadCredentials
	}
	return nil
}

type fakeSigner struct {
	mu     sync.Mutex
	tokens map[string]ports.AuthClaims
}

func (f *fakeSigner) Sign(claims ports.AuthClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := uuid.NewString()
	f.tokens[token] = claims
	return token, nil
}

func (f *fakeSigner) ParseAndValidate(token string) (ports.AuthClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.tokens[token]
	if !ok {
		return ports.AuthClaims{}, fmt.Errorf("unknown token")
	}
	return claims, nil
}

func (f *fakeSigner) PublicJWKs() ([]map[string]any, error) { return nil, nil }

type fakeGeo struct{}

func (fakeGeo) Locate(_ context.Context, ip string) (string, error) {
	if strings.HasPrefix(ip, "127.") {
		return "Localhost", nil
	}
	return "", nil
}
