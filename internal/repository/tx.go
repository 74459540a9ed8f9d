package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// WithinTx выполняет fn внутри одной транзакции базы данных.
//
// Все мультизаписи ядра (баланс + сделка + журнал) обязаны проходить
// через эту обертку: либо фиксируются все записи, либо ни одна.
// Любая ошибка из fn приводит к откату; частичное применение
// (например, баланс списан, а сделка не создана) невозможно.
func WithinTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	return nil
}
