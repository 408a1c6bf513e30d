package ledger

import (
	"context"
	"fmt"

	"paperledger/internal/store"
)

// Reads run in their own unit of work without taking the engine mutex and
// always return detached copies.

func (e *Engine) read(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()
	return fn(uow)
}

// Account returns nil when the account has not been initialized.
func (e *Engine) Account(ctx context.Context) (*Account, error) {
	var out *Account
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		m, err := uow.Accounts().Get(ctx)
		if err != nil || m == nil {
			return err
		}
		acct := accountFromModel(m)
		out = &acct
		return nil
	})
	return out, err
}

// Positions returns every position ordered by code.
func (e *Engine) Positions(ctx context.Context) ([]Position, error) {
	out := make([]Position, 0)
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		rows, err := uow.Positions().List(ctx)
		if err != nil {
			return err
		}
		for i := range rows {
			out = append(out, positionFromModel(&rows[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) Position(ctx context.Context, code string) (*Position, error) {
	var out *Position
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		m, err := uow.Positions().Get(ctx, normalizeCode(code))
		if err != nil || m == nil {
			return err
		}
		pos := positionFromModel(m)
		out = &pos
		return nil
	})
	return out, err
}

func (e *Engine) PositionByID(ctx context.Context, id int64) (*Position, error) {
	var out *Position
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		m, err := uow.Positions().GetByID(ctx, id)
		if err != nil || m == nil {
			return err
		}
		pos := positionFromModel(m)
		out = &pos
		return nil
	})
	return out, err
}

// OrderCount returns the size of the order log.
func (e *Engine) OrderCount(ctx context.Context) (int64, error) {
	var n int64
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		var err error
		n, err = uow.Orders().Count(ctx)
		return err
	})
	return n, err
}

// Orders returns the newest orders first; limit <= 0 returns the whole log.
func (e *Engine) Orders(ctx context.Context, limit int) ([]Order, error) {
	out := make([]Order, 0)
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		rows, err := uow.Orders().List(ctx, limit)
		if err != nil {
			return err
		}
		for i := range rows {
			out = append(out, orderFromModel(&rows[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) Marks(ctx context.Context, limit int) ([]MarkEvent, error) {
	out := make([]MarkEvent, 0)
	err := e.read(ctx, func(uow store.UnitOfWork) error {
		rows, err := uow.Marks().List(ctx, limit)
		if err != nil {
			return err
		}
		for i := range rows {
			ev, err := markEventFromModel(&rows[i])
			if err != nil {
				return fmt.Errorf("decode mark event %d: %w", rows[i].ID, err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HeldCodes lists the codes of all current positions.
func (e *Engine) HeldCodes(ctx context.Context) ([]string, error) {
	positions, err := e.Positions(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(positions))
	for _, p := range positions {
		codes = append(codes, p.Code)
	}
	return codes, nil
}
