package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithTenantRLS executes a function inside a transaction with row-level
// security scoped to one tenant (a pharmacy chain).
//
// Usage in repositories:
//
//	tenantID, err := tenant.TenantID(ctx)
//	if err != nil { return err }
//	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &inv, "SELECT * FROM shop_inventories WHERE ...", ...)
//	})
//
// The transaction sets "SET LOCAL app.current_tenant" so RLS policies of the
// form USING (tenant_id = current_setting('app.current_tenant')::uuid) filter
// rows automatically. SET LOCAL is transaction-scoped, so pooled connections
// get clean state on the next request.
func (db *DB) WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// SET LOCAL doesn't support parameterized queries; tenantID is a
		// UUID validated upstream, not raw user input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

type txKey struct{}

// TxFromContext returns the transaction stored by WithTenantRLS, if any.
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}
