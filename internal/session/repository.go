package session

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/models"
)

// PostgresRepository stores snapshots in the wizard_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, s *models.SessionSnapshot) error {
	draft, err := json.Marshal(s.Draft)
	if err != nil {
		return apperrors.NewSerializationFailedError(err)
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO wizard_sessions (id, kind, target_id, step, state, draft, generation, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			target_id = EXCLUDED.target_id,
			step = EXCLUDED.step,
			state = EXCLUDED.state,
			draft = EXCLUDED.draft,
			generation = EXCLUDED.generation,
			updated_at = EXCLUDED.updated_at`,
		s.ID, s.Kind, nullString(s.TargetID), s.Step, s.State, draft, int64(s.Generation), s.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewPersistenceFailedError("save", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	var (
		s          models.SessionSnapshot
		target     sql.NullString
		draft      []byte
		generation int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, target_id, step, state, draft, generation, updated_at
		FROM wizard_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.Kind, &target, &s.Step, &s.State, &draft, &generation, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError("find", err)
	}

	s.TargetID = target.String
	s.Generation = uint64(generation)
	if len(draft) > 0 {
		dec := json.NewDecoder(bytes.NewReader(draft))
		dec.UseNumber()
		if err := dec.Decode(&s.Draft); err != nil {
			return nil, apperrors.NewPersistenceFailedError("find", fmt.Errorf("decode draft: %w", err))
		}
	}
	if s.Draft == nil {
		s.Draft = map[string]interface{}{}
	}
	return &s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE id = $1`, id); err != nil {
		return apperrors.NewPersistenceFailedError("delete", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, apperrors.NewPersistenceFailedError("sweep", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewPersistenceFailedError("sweep", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
