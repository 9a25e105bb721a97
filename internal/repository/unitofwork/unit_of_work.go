package unitofwork

import (
	"context"
	"errors"

	"ai-review-be/internal/repository/contract"
)

// UnitOfWork groups repository writes into one transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ReviewRepository() contract.ReviewRepository
}

// Run executes fn inside a transaction. It commits when fn succeeds and rolls
// back when fn fails or panics.
func Run(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if p := recover(); p != nil {
				uow.Rollback()
				panic(p)
			}
		}
	}()

	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	committed = true
	return uow.Commit()
}
