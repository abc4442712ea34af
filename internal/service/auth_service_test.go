package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/openlearn/lms-api/internal/models"
	appErrors "github.com/openlearn/lms-api/pkg/errors"
)

type fakeAuthRepo struct {
	usersByEmail    map[string]*models.User
	usersByID       map[string]*models.User
	usersByUsername map[string]*models.User
	usersByResetTok map[string]*models.User
	refreshTokens   map[string]*models.RefreshToken
	resetTokenHash  string
	resetExpiry     time.Time
	revokedAll      bool
	purged          int64
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		usersByEmail:    map[string]*models.User{},
		usersByID:       map[string]*models.User{},
		usersByUsername: map[string]*models.User{},
		usersByResetTok: map[string]*models.User{},
		refreshTokens:   map[string]*models.RefreshToken{},
	}
}

func (f *fakeAuthRepo) add(user *models.User) {
	f.usersByEmail[user.Email] = user
	f.usersByID[user.ID] = user
	f.usersByUsername[user.Username] = user
}

func (f *fakeAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := f.usersByUsername[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	f.add(user)
	return nil
}

func (f *fakeAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

func (f *fakeAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if u, ok := f.usersByID[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeAuthRepo) SetResetToken(_ context.Context, id, tokenHash string, expiry time.Time) error {
	f.resetTokenHash = tokenHash
	f.resetExpiry = expiry
	if u, ok := f.usersByID[id]; ok {
		f.usersByResetTok[tokenHash] = u
	}
	return nil
}

func (f *fakeAuthRepo) FindByResetTokenHash(_ context.Context, tokenHash string) (*models.User, error) {
	if u, ok := f.usersByResetTok[tokenHash]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) ClearResetToken(_ context.Context, _ string) error {
	f.usersByResetTok = map[string]*models.User{}
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := f.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, t := range f.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeAuthRepo) RevokeAllRefreshTokens(_ context.Context, _ string, _ time.Time) error {
	f.revokedAll = true
	return nil
}

func (f *fakeAuthRepo) DeleteExpiredRefreshTokens(_ context.Context, _ time.Time) (int64, error) {
	return f.purged, nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		ResetTokenExpiry:   time.Hour,
		Issuer:             "lms-api-test",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "lea@example.com",
		Password: "sup3rsecret",
		FullName: "Lea Learner",
		Username: "lealearner",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, models.RoleLearner, resp.User.Role)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "lea@example.com", Password: "sup3rsecret"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	require.Equal(t, models.RoleLearner, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeAuthRepo()
	repo.add(&models.User{ID: "u1", Email: "taken@example.com", Username: "taken"})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "sup3rsecret",
		FullName: "Dup",
		Username: "someoneelse",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("rightpass"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := newFakeAuthRepo()
	repo.add(&models.User{ID: "u1", Email: "lea@example.com", Username: "lea", PasswordHash: string(hash), Active: true})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "lea@example.com", Password: "wrongpass"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	session, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "lea@example.com",
		Password: "sup3rsecret",
		FullName: "Lea Learner",
		Username: "lealearner",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)
	require.True(t, repo.refreshTokens[session.RefreshToken].Revoked)

	// The revoked token cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestForgotPasswordSilentOnUnknownEmail(t *testing.T) {
	repo := newFakeAuthRepo()
	dispatcher := &fakeDispatcher{}
	svc := NewAuthService(repo, dispatcher, nil, nil, testAuthConfig())

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@example.com"})
	require.NoError(t, err)
	require.Empty(t, dispatcher.jobs)
}

func TestForgotThenResetPassword(t *testing.T) {
	repo := newFakeAuthRepo()
	repo.add(&models.User{ID: "u1", Email: "lea@example.com", Username: "lea", FullName: "Lea Learner", Active: true})
	dispatcher := &fakeDispatcher{}
	svc := NewAuthService(repo, dispatcher, nil, nil, testAuthConfig())

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "lea@example.com"})
	require.NoError(t, err)
	require.Len(t, dispatcher.jobs, 1)
	require.Equal(t, MailJobPasswordReset, dispatcher.jobs[0].Type)

	payload, ok := dispatcher.jobs[0].Payload.(PasswordResetMailPayload)
	require.True(t, ok)
	// Stored token is hashed, plaintext only leaves through the mail.
	require.Equal(t, hashToken(payload.Token), repo.resetTokenHash)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: payload.Token, NewPassword: "newsecret"})
	require.NoError(t, err)
	require.True(t, repo.revokedAll)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.usersByID["u1"].PasswordHash), []byte("newsecret")))
}

func TestResetPasswordBadToken(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), nil, nil, nil, testAuthConfig())

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "bogus", NewPassword: "newsecret"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidToken.Code, appErr.Code)
}

func TestPurgeExpiredRefreshTokens(t *testing.T) {
	repo := newFakeAuthRepo()
	repo.purged = 3
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	deleted, err := svc.PurgeExpiredRefreshTokens(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
}
