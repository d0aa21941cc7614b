// Package storage holds what the persistence backends share: the sentinel
// errors domain services match on, the DBTX handle satisfied by both *sql.DB
// and *sql.Tx, a transaction helper and the pool configuration.
//
// Each domain package declares the store interface it consumes (auth.UserStore,
// auth.Ledger, franchises.Repository, orders.Repository). The postgres subpackage
// implements all of them on one connection pool and the memory subpackage
// keeps them in process. postgres also provides a Redis
// token ledger for deployments that keep sessions out of the database.
//
// Backends return ErrNotFound when a row is missing and ErrDuplicate when a
// unique constraint rejects a write:
//
//	user, err := users.GetUserByEmail(ctx, email)
//	if errors.Is(err, storage.ErrNotFound) {
//		// unknown email
//	}
//
// Multi-statement writes run through WithTx:
//
//	err := storage.WithTx(ctx, db, func(ctx context.Context, tx storage.DBTX) error {
//		_, err := tx.ExecContext(ctx, "DELETE FROM stores WHERE franchise_id = $1", id)
//		return err
//	})
package storage
