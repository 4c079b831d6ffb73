// Package backend is the narrow command surface of the native
// storage/identity process. Account creation, key management and encrypted
// persistence live behind it; this engine only cares about the membership
// shape it returns and success/failure of hint imports.
package backend

import (
	"context"
	"errors"

	"github.com/hearthchat/hearth/internal/domain"
)

// ErrNoKey means the local identity does not hold the symmetric key for the
// requested room scope. Expected for scopes the identity isn't a member of;
// never treated as a failure by callers.
var ErrNoKey = errors.New("no key for signing pubkey")

// Commander is the request/response interface to the backend.
type Commander interface {
	// Identity returns the stable local account identity.
	Identity(ctx context.Context) (*domain.Identity, error)
	// ListServers returns every server (house) the identity belongs to,
	// with rooms and membership.
	ListServers(ctx context.Context) ([]domain.Server, error)
	// ImportHint decrypts and imports the latest encrypted room hint for
	// the scope identified by key. Returns ErrNoKey when the identity
	// holds no matching key.
	ImportHint(ctx context.Context, key domain.SigningKey) (*domain.Server, error)
}
