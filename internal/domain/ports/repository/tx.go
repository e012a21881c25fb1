package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via the tx
// argument.
//
// Keeps use-case interfaces clean (no transaction types leaking out) while
// repository methods that accept `qx any` can detect a tx and run
// SELECT ... FOR UPDATE / tx-bound Exec/Query as needed.
//
// The concrete type of the handle is infra-defined (e.g., pgx.Tx for Postgres).
// Repositories MUST gracefully accept `nil` (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
