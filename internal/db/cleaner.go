package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeDeleted removes soft-deleted environments whose deletion is older than cutoff.
// It returns the number of removed rows.
func PurgeDeleted(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM environments
		 WHERE deleted = true
		   AND last_modified < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge deleted environments: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

// StartSoftDeleteCleaner purges soft-deleted environments every interval
// until ctx is cancelled. Rows are kept for at least retention after deletion.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := PurgeDeleted(ctx, db, time.Now().Add(-retention))
				if err != nil {
					log.Error("failed to clean soft-deleted environments", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned soft-deleted environments", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
