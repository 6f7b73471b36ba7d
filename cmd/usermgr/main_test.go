package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aidin1998/botcontrol/internal/identities"
	"github.com/Aidin1998/botcontrol/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeAdmin struct {
	users  map[string]*models.User
	closed int
}

func (f *fakeAdmin) CreateUser(_ context.Context, username, password string) (*models.User, error) {
	if _, ok := f.users[username]; ok {
		return nil, identities.ErrUserExists
	}
	if len(password) < identities.MinPasswordLength {
		return nil, identities.ErrPasswordTooShort
	}
	u := &models.User{ID: primitive.NewObjectID(), Username: username, Active: true, CreatedAt: time.Now()}
	f.users[username] = u
	return u, nil
}

func (f *fakeAdmin) ListUsers(context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeAdmin) SetActive(_ context.Context, username string, active bool) error {
	u, ok := f.users[username]
	if !ok {
		return identities.ErrUserNotFound
	}
	u.Active = active
	return nil
}

func useFake(t *testing.T) *fakeAdmin {
	t.Helper()
	fake := &fakeAdmin{users: map[string]*models.User{}}
	prev := openAdmin
	openAdmin = func(context.Context) (userAdmin, func(), error) {
		return fake, func() { fake.closed++ }, nil
	}
	t.Cleanup(func() { openAdmin = prev })
	return fake
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAddAndList(t *testing.T) {
	fake := useFake(t)

	out, err := execute(t, "add", "alice", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user alice")
	assert.Equal(t, 1, fake.closed)

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "true")
}

func TestAddRejectsDuplicates(t *testing.T) {
	useFake(t)

	_, err := execute(t, "add", "bob", "secret123")
	require.NoError(t, err)
	_, err = execute(t, "add", "bob", "secret123")
	assert.True(t, errors.Is(err, identities.ErrUserExists))
}

func TestAddRequiresTwoArgs(t *testing.T) {
	useFake(t)

	_, err := execute(t, "add", "carol")
	assert.Error(t, err)
}

func TestEnableDisable(t *testing.T) {
	fake := useFake(t)
	_, err := execute(t, "add", "dave", "secret123")
	require.NoError(t, err)

	out, err := execute(t, "disable", "dave")
	require.NoError(t, err)
	assert.Contains(t, out, "User dave disabled")
	assert.False(t, fake.users["dave"].Active)

	out, err = execute(t, "enable", "dave")
	require.NoError(t, err)
	assert.Contains(t, out, "User dave enabled")
	assert.True(t, fake.users["dave"].Active)

	_, err = execute(t, "disable", "nobody")
	assert.True(t, errors.Is(err, identities.ErrUserNotFound))
}

func TestOpenFailure(t *testing.T) {
	prev := openAdmin
	openAdmin = func(context.Context) (userAdmin, func(), error) {
		return nil, nil, errors.New("mongo down")
	}
	defer func() { openAdmin = prev }()

	_, err := execute(t, "list")
	assert.EqualError(t, err, "mongo down")
}

func TestDotEnvLoadedAfterFlagParsing(t *testing.T) {
	useFake(t)
	t.Cleanup(func() {
		verbose = false
		_ = os.Unsetenv("USERMGR_DOTENV_CHECK")
	})

	t.Chdir(t.TempDir())
	out, err := execute(t, "--verbose", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: .env file not found")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("USERMGR_DOTENV_CHECK=loaded\n"), 0o600))
	t.Chdir(dir)
	out, err = execute(t, "--verbose", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Warning")
	assert.Equal(t, "loaded", os.Getenv("USERMGR_DOTENV_CHECK"))
}
