//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
package identity

import (
	"context"

	"chat-mesh/domain"
)

// Directory resolves user ids against the system of record for accounts.
// The aggregation service only depends on this port, so resolution can
// be remote in production and an in-memory fake in tests.
type Directory interface {
	// Resolve returns the user behind id. Unknown ids are a NotFoundError,
	// transport or upstream failures an UpstreamError.
	Resolve(ctx context.Context, id string) (domain.User, error)
	// ResolveMany resolves each id independently and in parallel. On
	// failure it still returns the users that did resolve, alongside an
	// UpstreamError carrying the ids that did not, so callers choose
	// between failing and degrading.
	ResolveMany(ctx context.Context, ids []string) ([]domain.User, error)
}
