package support

import (
	"context"
	"errors"

	"campusfind/internal/app/uow"
)

var ErrFactoryRequired = errors.New("support: unit of work factory required")

// BeginReadOnlyUnit joins an ambient unit of work when one is already on the
// context, otherwise starts a read-only one. The returned cleanup rolls back
// only units opened here; call it unconditionally.
func BeginReadOnlyUnit(ctx context.Context, factory uow.Factory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, nil, ErrFactoryRequired
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.ContextWithUnitOfWork(unit.InjectContext(ctx), unit)
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}
