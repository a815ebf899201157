package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken records a session's JTI until the token would have expired on
// its own. Revoking twice is a no-op.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, utc(expiresAt),
	); err != nil {
		return fmt.Errorf("revoking token %s: %w", jti, err)
	}

	if _, err := PruneRevokedTokens(ctx, db, time.Now()); err != nil {
		return err
	}
	return nil
}

// IsTokenRevoked reports whether jti is on the revocation list.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var revoked bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&revoked); err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}

// PruneRevokedTokens drops entries whose tokens expired before now; the JWT
// expiry check rejects those already.
func PruneRevokedTokens(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, utc(now),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning revoked tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
