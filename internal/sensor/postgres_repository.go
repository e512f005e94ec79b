package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL sample repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert appends a sample and assigns its stored sequence number.
func (r *PostgresRepository) Insert(ctx context.Context, sample *Sample) error {
	query := `
		INSERT INTO samples (device_id, bpm, spo2, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING seq
	`
	return r.pool.QueryRow(ctx, query,
		sample.DeviceID,
		sample.BPM,
		sample.SpO2,
		sample.CreatedAt,
	).Scan(&sample.Seq)
}

// Latest returns the most recently stored sample among the given devices.
func (r *PostgresRepository) Latest(ctx context.Context, deviceIDs []string) (*Sample, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT seq, device_id, bpm, spo2, created_at
		FROM samples
		WHERE device_id = ANY($1)
		ORDER BY seq DESC
		LIMIT 1
	`

	var sample Sample
	err := r.pool.QueryRow(ctx, query, deviceIDs).Scan(
		&sample.Seq,
		&sample.DeviceID,
		&sample.BPM,
		&sample.SpO2,
		&sample.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &sample, nil
}

// Window returns all samples for the given devices within the optional bounds.
func (r *PostgresRepository) Window(ctx context.Context, deviceIDs []string, since, until *time.Time) ([]Sample, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT seq, device_id, bpm, spo2, created_at
		FROM samples
		WHERE device_id = ANY($1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query, deviceIDs, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSamples(rows)
}

// All returns every stored sample. Admin/debug use only.
func (r *PostgresRepository) All(ctx context.Context) ([]Sample, error) {
	query := `
		SELECT seq, device_id, bpm, spo2, created_at
		FROM samples
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSamples(rows)
}

// DeleteByID removes a sample by sequence number.
func (r *PostgresRepository) DeleteByID(ctx context.Context, seq int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM samples WHERE seq = $1`, seq)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSampleNotFound
	}
	return nil
}

func scanSamples(rows pgx.Rows) ([]Sample, error) {
	var samples []Sample
	for rows.Next() {
		var sample Sample
		err := rows.Scan(
			&sample.Seq,
			&sample.DeviceID,
			&sample.BPM,
			&sample.SpO2,
			&sample.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
