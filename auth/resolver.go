//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=../mocks/mock_identity_resolver.go -package=mocks
package auth

import (
	"log/slog"

	"chat-room/domain"
	"chat-room/errors"
	"chat-room/repositories"
)

// IIdentityResolver is the identity collaborator of the chat core:
// it turns an opaque token into {userId, displayName, role} or fails.
type IIdentityResolver interface {
	Resolve(token string) (domain.Identity, error)
}

// Resolver validates the JWT and re-reads the account so that display
// name and role reflect the store, not a stale token.
type Resolver struct {
	secret []byte
	users  repositories.IUserRepository
	log    *slog.Logger
}

func NewResolver(secret []byte, users repositories.IUserRepository, log *slog.Logger) *Resolver {
	return &Resolver{secret: secret, users: users, log: log}
}

func (r *Resolver) Resolve(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.ErrIdentityInvalid
	}
	claims, err := ValidateToken(r.secret, token)
	if err != nil {
		r.log.Debug("Token rejected", "error", err)
		return domain.Identity{}, errors.ErrIdentityInvalid
	}

	user, err := r.users.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.Identity{}, errors.ErrIdentityInvalid
		}
		return domain.Identity{}, err
	}
	return user.Identity(), nil
}
