package principal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPatientRepository is a PostgreSQL implementation of PatientRepository.
type PostgresPatientRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPatientRepository creates a new PostgreSQL patient repository.
func NewPostgresPatientRepository(pool *pgxpool.Pool) *PostgresPatientRepository {
	return &PostgresPatientRepository{pool: pool}
}

// Create persists a new patient with its initial device bindings.
func (r *PostgresPatientRepository) Create(ctx context.Context, patient *Patient) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO patients (id, email, password_hash, physician_id, version, last_access, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
	`
	_, err = tx.Exec(ctx, query,
		patient.ID,
		patient.Email,
		patient.PasswordHash,
		patient.PhysicianID,
		patient.Version,
		patient.LastAccess,
		patient.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err := insertDevices(ctx, tx, patient.ID, patient.Devices); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindByEmail finds a patient by lowercased email.
func (r *PostgresPatientRepository) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(physician_id, ''), version, last_access, created_at
		FROM patients
		WHERE email = $1
	`
	return r.scanPatient(ctx, query, email)
}

// FindByID finds a patient by ID.
func (r *PostgresPatientRepository) FindByID(ctx context.Context, id string) (*Patient, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(physician_id, ''), version, last_access, created_at
		FROM patients
		WHERE id = $1
	`
	return r.scanPatient(ctx, query, id)
}

func (r *PostgresPatientRepository) scanPatient(ctx context.Context, query string, arg any) (*Patient, error) {
	var patient Patient
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&patient.ID,
		&patient.Email,
		&patient.PasswordHash,
		&patient.PhysicianID,
		&patient.Version,
		&patient.LastAccess,
		&patient.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	devices, err := r.loadDevices(ctx, patient.ID)
	if err != nil {
		return nil, err
	}
	patient.Devices = devices

	return &patient, nil
}

func (r *PostgresPatientRepository) loadDevices(ctx context.Context, patientID string) ([]DeviceBinding, error) {
	query := `
		SELECT device_id, measurement_interval, start_time, end_time
		FROM patient_devices
		WHERE patient_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []DeviceBinding
	for rows.Next() {
		var d DeviceBinding
		if err := rows.Scan(&d.DeviceID, &d.MeasurementInterval, &d.StartTime, &d.EndTime); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

// Update replaces the patient aggregate if the stored version matches
// expectedVersion. The device list is rewritten inside the same transaction so
// the version check covers it.
func (r *PostgresPatientRepository) Update(ctx context.Context, patient *Patient, expectedVersion int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	query := `
		UPDATE patients SET
			password_hash = $2,
			physician_id = NULLIF($3, ''),
			version = version + 1
		WHERE id = $1 AND version = $4
	`

	result, err := tx.Exec(ctx, query, patient.ID, patient.PasswordHash, patient.PhysicianID, expectedVersion)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patient.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleWrite
	}

	if _, err := tx.Exec(ctx, `DELETE FROM patient_devices WHERE patient_id = $1`, patient.ID); err != nil {
		return err
	}
	if err := insertDevices(ctx, tx, patient.ID, patient.Devices); err != nil {
		return err
	}

	patient.Version = expectedVersion + 1

	return tx.Commit(ctx)
}

// ListByPhysician returns all patients assigned to the given physician.
func (r *PostgresPatientRepository) ListByPhysician(ctx context.Context, physicianID string) ([]*Patient, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(physician_id, ''), version, last_access, created_at
		FROM patients
		WHERE physician_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, physicianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		var patient Patient
		err := rows.Scan(
			&patient.ID,
			&patient.Email,
			&patient.PasswordHash,
			&patient.PhysicianID,
			&patient.Version,
			&patient.LastAccess,
			&patient.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		patients = append(patients, &patient)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, patient := range patients {
		devices, err := r.loadDevices(ctx, patient.ID)
		if err != nil {
			return nil, err
		}
		patient.Devices = devices
	}

	return patients, nil
}

// TouchLastAccess records a successful login.
func (r *PostgresPatientRepository) TouchLastAccess(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE patients SET last_access = $2 WHERE id = $1`, id, time.Now())
	return err
}

// insertDevices writes the ordered device list for a patient.
func insertDevices(ctx context.Context, tx pgx.Tx, patientID string, devices []DeviceBinding) error {
	query := `
		INSERT INTO patient_devices (patient_id, device_id, measurement_interval, start_time, end_time, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, d := range devices {
		if _, err := tx.Exec(ctx, query, patientID, d.DeviceID, d.MeasurementInterval, d.StartTime, d.EndTime, i); err != nil {
			return fmt.Errorf("inserting device %s: %w", d.DeviceID, err)
		}
	}
	return nil
}

// PostgresPhysicianRepository is a PostgreSQL implementation of PhysicianRepository.
type PostgresPhysicianRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPhysicianRepository creates a new PostgreSQL physician repository.
func NewPostgresPhysicianRepository(pool *pgxpool.Pool) *PostgresPhysicianRepository {
	return &PostgresPhysicianRepository{pool: pool}
}

// Create persists a new physician.
func (r *PostgresPhysicianRepository) Create(ctx context.Context, physician *Physician) error {
	query := `
		INSERT INTO physicians (id, email, password_hash, last_access, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		physician.ID,
		physician.Email,
		physician.PasswordHash,
		physician.LastAccess,
		physician.CreatedAt,
	)
	return err
}

// FindByEmail finds a physician by lowercased email.
func (r *PostgresPhysicianRepository) FindByEmail(ctx context.Context, email string) (*Physician, error) {
	query := `
		SELECT id, email, password_hash, last_access, created_at
		FROM physicians
		WHERE email = $1
	`
	return r.scanPhysician(ctx, query, email)
}

// FindByID finds a physician by ID.
func (r *PostgresPhysicianRepository) FindByID(ctx context.Context, id string) (*Physician, error) {
	query := `
		SELECT id, email, password_hash, last_access, created_at
		FROM physicians
		WHERE id = $1
	`
	return r.scanPhysician(ctx, query, id)
}

func (r *PostgresPhysicianRepository) scanPhysician(ctx context.Context, query string, arg any) (*Physician, error) {
	var physician Physician
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&physician.ID,
		&physician.Email,
		&physician.PasswordHash,
		&physician.LastAccess,
		&physician.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &physician, nil
}

// List returns all physicians ordered by email.
func (r *PostgresPhysicianRepository) List(ctx context.Context) ([]*Physician, error) {
	query := `
		SELECT id, email, password_hash, last_access, created_at
		FROM physicians
		ORDER BY email
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var physicians []*Physician
	for rows.Next() {
		var physician Physician
		if err := rows.Scan(
			&physician.ID,
			&physician.Email,
			&physician.PasswordHash,
			&physician.LastAccess,
			&physician.CreatedAt,
		); err != nil {
			return nil, err
		}
		physicians = append(physicians, &physician)
	}
	return physicians, rows.Err()
}

// TouchLastAccess records a successful login.
func (r *PostgresPhysicianRepository) TouchLastAccess(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE physicians SET last_access = $2 WHERE id = $1`, id, time.Now())
	return err
}

// Ensure the Postgres repositories implement their interfaces.
var (
	_ PatientRepository   = (*PostgresPatientRepository)(nil)
	_ PhysicianRepository = (*PostgresPhysicianRepository)(nil)
)
