package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/avalontm/gemini-auth/password"
	"github.com/avalontm/gemini-auth/sessions"
	"github.com/avalontm/gemini-auth/token"
	"github.com/avalontm/gemini-auth/users"
)

// TokenPair is the credential set handed to a client after registration or
// login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in seconds
}

// RegisterParams are the inputs for Service.Register.
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// LoginParams are the inputs for Service.Login. The client metadata fields
// are recorded on the created session.
type LoginParams struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
	Device    string
	Location  string
}

// UpdateProfileParams carries the mutable profile fields. Nil pointers leave
// the field untouched.
type UpdateProfileParams struct {
	Username    *string
	Preferences map[string]any
}

// Repos holds the repository dependencies for the Service.
type Repos struct {
	Users    users.Repo
	Sessions *sessions.Store
}

// Service orchestrates registration, login, token verification, and the
// session lifecycle across the user repository, session store, token issuer,
// and password hasher.
type Service struct {
	repos       Repos
	tokens      *token.Issuer
	passwords   *password.Hasher
	maxSessions int
	nowTime     func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithMaxSessions sets the per-user concurrent session cap.
func WithMaxSessions(maxSessions int) ServiceOption {
	return func(s *Service) {
		s.maxSessions = maxSessions
	}
}

// NewService initializes a new Service with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewService(repos Repos, tokens *token.Issuer, passwords *password.Hasher, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewService] Sessions store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}
	if passwords == nil {
		return nil, errors.New("[NewService] password hasher is required")
	}

	service := &Service{
		repos:       repos,
		tokens:      tokens,
		passwords:   passwords,
		maxSessions: sessions.DefaultMaxSessions,
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Register creates a new user account and returns its first token pair.
// No session is created here; the first session appears at login. All input
// violations are collected into a single ValidationError.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*users.User, *TokenPair, error) {
	violations := validateEmail(params.Email, nil)
	violations = validateUsername(params.Username, violations)
	strength := s.passwords.ValidateStrength(params.Password)
	violations = append(violations, strength.Errors...)
	if len(violations) > 0 {
		return nil, nil, NewValidationError(violations)
	}

	hash, err := s.passwords.Hash(params.Password)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Register] passwords.Hash")
	}

	now := s.nowTime()
	user := &users.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(params.Username),
		Email:        users.NormalizeEmail(params.Email),
		PasswordHash: hash,
		Role:         users.RoleUser,
		Preferences:  users.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repos.Users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, users.EmailExistsErr):
			return nil, nil, EmailExistsErr
		case errors.Is(err, users.UsernameExistsErr):
			return nil, nil, UsernameExistsErr
		}
		return nil, nil, errors.Wrap(err, "[Service.Register] users.Create")
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Register] issueTokenPair")
	}
	return user, pair, nil
}

// Login verifies the credentials and opens a new session bound to the access
// token. Unknown email and wrong password both return InvalidCredentialsErr;
// nothing in the response reveals which accounts exist.
func (s *Service) Login(ctx context.Context, params LoginParams) (*users.User, *TokenPair, error) {
	user, err := s.repos.Users.GetByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, users.NotFoundErr) {
			return nil, nil, InvalidCredentialsErr
		}
		return nil, nil, errors.Wrap(err, "[Service.Login] users.GetByEmail")
	}

	// Check Password
	match, err := s.passwords.Compare(params.Password, user.PasswordHash)
	if err != nil || !match {
		return nil, nil, InvalidCredentialsErr
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Login] issueTokenPair")
	}

	if err := s.openSession(ctx, user.ID, pair.AccessToken, params); err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Login] openSession")
	}

	return user, pair, nil
}

// VerifyAuth authenticates a raw access token: signature and claims first,
// then the backing session. Both checks must pass. The session's activity
// timestamp is refreshed on success and the user record is loaded fresh so
// role or profile changes take effect immediately.
func (s *Service) VerifyAuth(ctx context.Context, rawToken string) (*users.User, *sessions.Session, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, nil, TokenRequiredErr
	}

	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, nil, err
	}

	// Refresh tokens authenticate nothing on their own.
	if claims.IsRefresh() {
		return nil, nil, SessionInvalidErr
	}

	session, err := s.repos.Sessions.GetByToken(ctx, rawToken)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.VerifyAuth] sessions.GetByToken")
	}
	if session == nil || !session.IsValid(s.nowTime()) {
		return nil, nil, SessionInvalidErr
	}

	user, err := s.repos.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.NotFoundErr) {
			return nil, nil, UserNotFoundErr
		}
		return nil, nil, errors.Wrap(err, "[Service.VerifyAuth] users.GetByID")
	}

	if touched, err := s.repos.Sessions.Touch(ctx, rawToken); err == nil {
		session = touched
	}

	return user, session, nil
}

// Logout revokes the session behind the token and deletes it immediately
// rather than waiting for the sweep. Logging out an already-dead session
// succeeds quietly.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return TokenRequiredErr
	}

	if _, err := s.repos.Sessions.Revoke(ctx, rawToken, sessions.ReasonLogout); err != nil && !errors.Is(err, sessions.NotFoundErr) {
		return errors.Wrap(err, "[Service.Logout] sessions.Revoke")
	}

	if _, err := s.repos.Sessions.DeleteByToken(ctx, rawToken); err != nil {
		return errors.Wrap(err, "[Service.Logout] sessions.DeleteByToken")
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new access token and opens a
// session for it. The refresh token itself is not rotated and stays usable
// until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string, params LoginParams) (*users.User, *TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, nil, TokenRequiredErr
	}

	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if !claims.IsRefresh() {
		return nil, nil, NotRefreshTokenErr
	}

	user, err := s.repos.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.NotFoundErr) {
			return nil, nil, UserNotFoundErr
		}
		return nil, nil, errors.Wrap(err, "[Service.Refresh] users.GetByID")
	}

	accessToken, err := s.tokens.Issue(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Refresh] tokens.Issue")
	}

	if err := s.openSession(ctx, user.ID, accessToken, params); err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Refresh] openSession")
	}

	pair := &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}
	return user, pair, nil
}

// ChangePassword verifies the current password, applies the new one, and
// deletes every session the user holds. All devices are signed out, the one
// making the change included.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.NotFoundErr) {
			return UserNotFoundErr
		}
		return errors.Wrap(err, "[Service.ChangePassword] users.GetByID")
	}

	match, err := s.passwords.Compare(currentPassword, user.PasswordHash)
	if err != nil || !match {
		return PasswordMismatchErr
	}

	if newPassword == currentPassword {
		return PasswordUnchangedErr
	}

	if strength := s.passwords.ValidateStrength(newPassword); !strength.IsValid {
		return NewValidationError(strength.Errors)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] passwords.Hash")
	}

	user.PasswordHash = hash
	user.UpdatedAt = s.nowTime()
	if err := s.repos.Users.UpdateByID(ctx, user); err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] users.UpdateByID")
	}

	if _, err := s.repos.Sessions.DeleteAllByUser(ctx, userID); err != nil {
		return errors.Wrap(err, "[Service.ChangePassword] sessions.DeleteAllByUser")
	}
	return nil
}

// GetProfile returns the user's current record.
func (s *Service) GetProfile(ctx context.Context, userID string) (*users.User, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.NotFoundErr) {
			return nil, UserNotFoundErr
		}
		return nil, errors.Wrap(err, "[Service.GetProfile] users.GetByID")
	}
	return user, nil
}

// UpdateProfile applies the provided profile fields and returns the updated
// record.
func (s *Service) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*users.User, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.NotFoundErr) {
			return nil, UserNotFoundErr
		}
		return nil, errors.Wrap(err, "[Service.UpdateProfile] users.GetByID")
	}

	if params.Username != nil {
		if violations := validateUsername(*params.Username, nil); len(violations) > 0 {
			return nil, NewValidationError(violations)
		}
		user.Username = strings.TrimSpace(*params.Username)
	}
	if params.Preferences != nil {
		if user.Preferences == nil {
			user.Preferences = make(map[string]any)
		}
		for key, value := range params.Preferences {
			user.Preferences[key] = value
		}
	}

	user.UpdatedAt = s.nowTime()
	if err := s.repos.Users.UpdateByID(ctx, user); err != nil {
		if errors.Is(err, users.UsernameExistsErr) {
			return nil, UsernameExistsErr
		}
		return nil, errors.Wrap(err, "[Service.UpdateProfile] users.UpdateByID")
	}
	return user, nil
}

// Sessions returns the user's active sessions, most recently active first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*sessions.Session, error) {
	return s.repos.Sessions.GetActiveByUser(ctx, userID)
}

func (s *Service) issueTokenPair(user *users.User) (*TokenPair, error) {
	accessToken, err := s.tokens.Issue(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, errors.Wrap(err, "issueTokenPair tokens.Issue")
	}
	refreshToken, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "issueTokenPair tokens.IssueRefresh")
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *Service) openSession(ctx context.Context, userID, accessToken string, params LoginParams) error {
	if _, err := s.repos.Sessions.Create(ctx, sessions.CreateParams{
		UserID:    userID,
		Token:     accessToken,
		IP:        params.IP,
		UserAgent: params.UserAgent,
		Device:    params.Device,
		Location:  params.Location,
	}); err != nil {
		return errors.Wrap(err, "openSession sessions.Create")
	}

	if _, err := s.repos.Sessions.LimitConcurrent(ctx, userID, s.maxSessions); err != nil {
		return errors.Wrap(err, "openSession sessions.LimitConcurrent")
	}
	return nil
}
