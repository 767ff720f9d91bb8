package uow

import (
	"context"
	"errors"

	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
	domainuser "campusfind/internal/domain/user"
)

// ErrConflict is returned from Commit when the transaction lost a write race
// and its reads can no longer be trusted. Callers surface it as a permission
// failure rather than retrying; a rerun would only observe the winner.
var ErrConflict = errors.New("uow: transaction conflict")

// UnitOfWork coordinates the item and thread repositories inside one
// transaction boundary. The first-contact binding protocol depends on
// Items and Threads committing atomically.
type UnitOfWork interface {
	Items() domainitems.Repository
	Threads() domainchat.ThreadRepository
	Users() domainuser.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// InjectContext makes the transaction visible to repository calls made
	// with the returned context.
	InjectContext(ctx context.Context) context.Context
}

// Factory starts unit of work instances.
type Factory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
