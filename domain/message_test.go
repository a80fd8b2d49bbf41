package domain

import (
	"strings"
	"testing"

	"chat-room/errors"

	"github.com/stretchr/testify/require"
)

func TestValidateBody(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateBody("hello", 100))

	req.ErrorIs(ValidateBody("", 100), errors.ErrInvalidMessage)
	req.ErrorIs(ValidateBody("   \t\n", 100), errors.ErrInvalidMessage)
	req.ErrorIs(ValidateBody(strings.Repeat("a", 101), 100), errors.ErrMessageTooLong)

	// The cap counts runes, not bytes
	req.NoError(ValidateBody(strings.Repeat("é", 100), 100))
}

func TestMessageKind_Valid(t *testing.T) {
	req := require.New(t)

	req.True(KindUser.Valid())
	req.True(KindSystem.Valid())
	req.True(KindNotice.Valid())
	req.False(MessageKind("shout").Valid())
}

func TestIdentity_CanModerate(t *testing.T) {
	req := require.New(t)

	req.False(Identity{Role: RoleUser}.CanModerate())
	req.True(Identity{Role: RoleAdmin}.CanModerate())
}
