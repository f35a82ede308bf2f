package services

import (
	"context"
	"testing"

	"postbase/internal/db/dbtest"
	"postbase/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice", "alice", false},
		{"  bob_99 ", "bob_99", false},
		{"a", "", true},
		{"-dash", "", true},
		{"has space", "", true},
		{"API", "", true},
		{"thirty-one-characters-long-name", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeUsername(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidUsername, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCreateAccount(t *testing.T) {
	gdb := dbtest.New(t)
	ctx := context.Background()

	user, profile, err := CreateAccount(ctx, gdb, NewAccount{Email: " Me@Example.test ", Username: "Me", PasswordHash: "x"})
	require.NoError(t, err)
	assert.Equal(t, "me@example.test", user.Email)
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, "me", profile.Username)
	assert.Equal(t, models.PlanFree, profile.Plan)
	assert.Equal(t, models.RoleUser, profile.Role)

	_, _, err = CreateAccount(ctx, gdb, NewAccount{Email: "me@example.test", Username: "other"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = CreateAccount(ctx, gdb, NewAccount{Email: "new@example.test", Username: "ME"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	var users int64
	gdb.Model(&models.User{}).Count(&users)
	assert.Equal(t, int64(1), users)
}

func TestAvailableUsername(t *testing.T) {
	gdb := dbtest.New(t)
	ctx := context.Background()

	name, err := AvailableUsername(ctx, gdb, "Octo Cat")
	require.NoError(t, err)
	assert.Equal(t, "octo-cat", name)

	_, _, err = CreateAccount(ctx, gdb, NewAccount{Email: "a@example.test", Username: name})
	require.NoError(t, err)

	name, err = AvailableUsername(ctx, gdb, "Octo Cat")
	require.NoError(t, err)
	assert.Equal(t, "octo-cat-1", name)

	// 保留名和非法名都退回 user
	name, err = AvailableUsername(ctx, gdb, "admin")
	require.NoError(t, err)
	assert.Equal(t, "user", name)
}
