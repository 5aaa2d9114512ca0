package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/codec"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// snapshotLockID serialises snapshot writes across API replicas.
const snapshotLockID int64 = 0x636f6d706c

type snapshotRepositoryImpl struct {
	db    *database.DB
	codec *codec.JSON
}

func NewSnapshotRepository(db *database.DB) (compliance.SnapshotRepository, error) {
	c, err := codec.NewJSON()
	if err != nil {
		return nil, err
	}
	return &snapshotRepositoryImpl{db: db, codec: c}, nil
}

// Save stores the snapshot. Saving a version twice is a no-op.
func (r *snapshotRepositoryImpl) Save(ctx context.Context, s *compliance.Snapshot) error {
	payload, err := r.codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.Version, err)
	}
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return fmt.Errorf("encode snapshot summary %s: %w", s.Version, err)
	}

	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, snapshotLockID); err != nil {
			return fmt.Errorf("lock snapshots: %w", err)
		}
		query := `
			INSERT INTO compliance_snapshots (version, recomputed_at, horizon_from, horizon_to, summary, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (version) DO NOTHING
		`
		_, err := q.Exec(ctx, query,
			s.Version, s.RecomputedAt,
			s.Horizon.From.Time(), s.Horizon.To.Time(),
			summary, payload,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", s.Version, err)
		}
		return nil
	})
}

func (r *snapshotRepositoryImpl) Latest(ctx context.Context) (*compliance.Snapshot, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT payload
		FROM compliance_snapshots
		ORDER BY recomputed_at DESC, version DESC
		LIMIT 1
	`
	return r.scanOne(q.QueryRow(ctx, query))
}

func (r *snapshotRepositoryImpl) GetByVersion(ctx context.Context, version string) (*compliance.Snapshot, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT payload
		FROM compliance_snapshots
		WHERE version = $1
	`
	return r.scanOne(q.QueryRow(ctx, query, version))
}

func (r *snapshotRepositoryImpl) scanOne(row pgx.Row) (*compliance.Snapshot, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, compliance.ErrSnapshotNotFound
		}
		return nil, err
	}
	var s compliance.Snapshot
	if err := r.codec.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func (r *snapshotRepositoryImpl) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	var deleted int64
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, snapshotLockID); err != nil {
			return fmt.Errorf("lock snapshots: %w", err)
		}
		query := `
			DELETE FROM compliance_snapshots
			WHERE version NOT IN (
				SELECT version FROM compliance_snapshots
				ORDER BY recomputed_at DESC, version DESC
				LIMIT $1
			)
		`
		tag, err := q.Exec(ctx, query, keep)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}
