package repositories

import (
	"testing"

	"chat-room/domain"
	"chat-room/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func Test_CreateUser_And_Lookups(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewUserRepository(db)

	userID, err := repository.CreateUser("alice@example.com", "Alice", "argon2-hash", domain.RoleUser)
	req.NoError(err)
	req.NotEmpty(userID)

	byEmail, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(userID, byEmail.ID)
	req.Equal("Alice", byEmail.DisplayName)
	req.Equal("argon2-hash", byEmail.PasswordHash)

	byID, err := repository.GetUserByID(userID)
	req.NoError(err)
	req.Equal(byEmail, byID)

	identity := byID.Identity()
	req.Equal(userID, identity.UserID)
	req.Equal(domain.RoleUser, identity.Role)
}

func Test_CreateUser_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewUserRepository(db)

	_, err = repository.CreateUser("bob@example.com", "Bob", "hash-1", domain.RoleUser)
	req.NoError(err)

	_, err = repository.CreateUser("bob@example.com", "Bobby", "hash-2", domain.RoleUser)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUser_Not_Found(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewUserRepository(db)

	_, err = repository.GetUserByEmail("ghost@example.com")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repository.GetUserByID("no-such-id")
	req.ErrorIs(err, errors.ErrNotFound)
}
