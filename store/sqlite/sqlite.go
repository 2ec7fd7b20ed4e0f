/*
Package sqlite provides the SQLite-backed Persistence Gateway.

PURPOSE:
  Implements engine.Gateway using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  caregivers:     Identity rows for caregivers (no credential material)
  patients:       Identity rows for patients
  vaccines:       Per-vaccine total doses ever added
  availabilities: (caregiver, day) free declarations
  appointments:   Active bookings; cancellation hard-deletes the row

INVARIANTS ENFORCED HERE:
  - availabilities PRIMARY KEY (username, day) rejects a duplicate upload
    of the same date by the same caregiver.
  - appointments UNIQUE (caregiver, day) is the storage-level last line of
    defense against double-booking. Because cancellation deletes rows, the
    index covers exactly the active set.
  - appointments.id is INTEGER PRIMARY KEY; the insert allocates
    COALESCE(MAX(id), 0) + 1 in the same statement, so id generation and
    consumption are one atomic step.
  - Foreign keys are ON with default RESTRICT: a caregiver with remaining
    availabilities or appointments cannot be deleted.

CONCURRENCY:
  Transactions open with BEGIN IMMEDIATE (the write lock is taken up
  front), serializing concurrent reservation attempts. A sync.Mutex plus a
  single pooled connection keeps in-process access coherent; the single
  connection also keeps ":memory:" databases from silently becoming one
  database per pool connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  a single writer at a time, better crash recovery.

ERROR MAPPING:
  Constraint violations are translated to the engine taxonomy at this
  boundary; no driver error type escapes. An unreachable or corrupt
  database surfaces as engine.ErrStorageUnavailable.

USAGE:
  gw, err := sqlite.New("./data/vaxsched.db")   // ":memory:" for tests
  if err != nil { ... }
  defer gw.Close()

SEE ALSO:
  - engine/store.go: Interface definitions and the transactional contract
  - engine/booking.go: The WithTx caller with cross-entity invariants
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vaxsched/reservation-engine/engine"
)

// Store implements engine.Gateway using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ engine.Gateway = (*Store)(nil)

// New creates a new SQLite gateway at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; one connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Identity rows. Credentials live with the external identity provider.
	CREATE TABLE IF NOT EXISTS caregivers (
		username TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS patients (
		username TEXT PRIMARY KEY
	);

	-- Total doses ever added per vaccine. Remaining is always derived as
	-- doses minus the count of active appointments referencing the name.
	CREATE TABLE IF NOT EXISTS vaccines (
		name  TEXT PRIMARY KEY,
		doses INTEGER NOT NULL CHECK (doses >= 0)
	);

	-- A caregiver's self-declared free dates. The primary key rejects a
	-- duplicate upload of the same (caregiver, day) pair.
	CREATE TABLE IF NOT EXISTS availabilities (
		username TEXT NOT NULL REFERENCES caregivers(username),
		day      TEXT NOT NULL,
		PRIMARY KEY (username, day)
	);

	-- Active bookings. Cancellation hard-deletes, so UNIQUE (caregiver, day)
	-- covers exactly the active set: the double-booking backstop.
	CREATE TABLE IF NOT EXISTS appointments (
		id         INTEGER PRIMARY KEY,
		caregiver  TEXT NOT NULL REFERENCES caregivers(username),
		day        TEXT NOT NULL,
		patient    TEXT NOT NULL REFERENCES patients(username),
		vaccine    TEXT NOT NULL REFERENCES vaccines(name),
		created_at TEXT NOT NULL,
		UNIQUE (caregiver, day)
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_patient
		ON appointments(patient);
	CREATE INDEX IF NOT EXISTS idx_appointments_vaccine
		ON appointments(vaccine);
	CREATE INDEX IF NOT EXISTS idx_availabilities_day
		ON availabilities(day);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so the same statements serve both
// auto-commit calls and units of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL GATEWAY (engine.Gateway WithTx)
// =============================================================================

// WithTx executes fn inside a single immediate transaction.
func (s *Store) WithTx(ctx context.Context, fn func(uow engine.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if err := fn(&txUnit{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// txUnit is the unit-of-work view bound to one transaction.
type txUnit struct {
	q *sql.Tx
}

var _ engine.UnitOfWork = (*txUnit)(nil)

func (u *txUnit) InsertAvailability(ctx context.Context, caregiver string, day engine.Date) error {
	return insertAvailability(ctx, u.q, caregiver, day)
}
func (u *txUnit) FreeCaregivers(ctx context.Context, day engine.Date) ([]string, error) {
	return freeCaregivers(ctx, u.q, day)
}
func (u *txUnit) AddDoses(ctx context.Context, vaccine string, count int) error {
	return addDoses(ctx, u.q, vaccine, count)
}
func (u *txUnit) Stock(ctx context.Context, vaccine string) (engine.VaccineStock, bool, error) {
	return stock(ctx, u.q, vaccine)
}
func (u *txUnit) AllStock(ctx context.Context) ([]engine.VaccineStock, error) {
	return allStock(ctx, u.q)
}
func (u *txUnit) InsertAppointment(ctx context.Context, appt engine.Appointment) (engine.AppointmentID, error) {
	return insertAppointment(ctx, u.q, appt)
}
func (u *txUnit) Appointment(ctx context.Context, id engine.AppointmentID) (*engine.Appointment, error) {
	return getAppointment(ctx, u.q, id)
}
func (u *txUnit) DeleteAppointment(ctx context.Context, id engine.AppointmentID) error {
	return deleteAppointment(ctx, u.q, id)
}
func (u *txUnit) AppointmentsByCaregiver(ctx context.Context, username string) ([]engine.Appointment, error) {
	return appointmentsBy(ctx, u.q, "caregiver", username)
}
func (u *txUnit) AppointmentsByPatient(ctx context.Context, username string) ([]engine.Appointment, error) {
	return appointmentsBy(ctx, u.q, "patient", username)
}
func (u *txUnit) NextAppointmentID(ctx context.Context) (engine.AppointmentID, error) {
	return nextAppointmentID(ctx, u.q)
}

// =============================================================================
// AUTO-COMMIT GATEWAY METHODS
// =============================================================================

func (s *Store) InsertAvailability(ctx context.Context, caregiver string, day engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAvailability(ctx, s.db, caregiver, day)
}

func (s *Store) FreeCaregivers(ctx context.Context, day engine.Date) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return freeCaregivers(ctx, s.db, day)
}

func (s *Store) AddDoses(ctx context.Context, vaccine string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addDoses(ctx, s.db, vaccine, count)
}

func (s *Store) Stock(ctx context.Context, vaccine string) (engine.VaccineStock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stock(ctx, s.db, vaccine)
}

func (s *Store) AllStock(ctx context.Context) ([]engine.VaccineStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return allStock(ctx, s.db)
}

func (s *Store) InsertAppointment(ctx context.Context, appt engine.Appointment) (engine.AppointmentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAppointment(ctx, s.db, appt)
}

func (s *Store) Appointment(ctx context.Context, id engine.AppointmentID) (*engine.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getAppointment(ctx, s.db, id)
}

func (s *Store) DeleteAppointment(ctx context.Context, id engine.AppointmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAppointment(ctx, s.db, id)
}

func (s *Store) AppointmentsByCaregiver(ctx context.Context, username string) ([]engine.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appointmentsBy(ctx, s.db, "caregiver", username)
}

func (s *Store) AppointmentsByPatient(ctx context.Context, username string) ([]engine.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appointmentsBy(ctx, s.db, "patient", username)
}

func (s *Store) NextAppointmentID(ctx context.Context) (engine.AppointmentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextAppointmentID(ctx, s.db)
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

func (s *Store) CreateCaregiver(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "INSERT INTO caregivers (username) VALUES (?)", username)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: caregiver username %q is taken", engine.ErrConflict, username)
	}
	return mapError(err)
}

func (s *Store) CreatePatient(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "INSERT INTO patients (username) VALUES (?)", username)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: patient username %q is taken", engine.ErrConflict, username)
	}
	return mapError(err)
}

// DeleteCaregiver removes a caregiver identity row. The RESTRICT foreign
// keys forbid deletion while any availability or appointment still
// references the username.
func (s *Store) DeleteCaregiver(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM caregivers WHERE username = ?", username)
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: caregiver %q still has availabilities or appointments", engine.ErrConflict, username)
	}
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: caregiver %q", engine.ErrNotFound, username)
	}
	return nil
}

// =============================================================================
// STATEMENT IMPLEMENTATIONS - shared by auto-commit and tx paths
// =============================================================================

func insertAvailability(ctx context.Context, q querier, caregiver string, day engine.Date) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO availabilities (username, day) VALUES (?, ?)",
		caregiver, day.Key(),
	)
	if isUniqueConstraintError(err) {
		return &engine.DuplicateAvailabilityError{Caregiver: caregiver, Day: day}
	}
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: caregiver %q", engine.ErrNotFound, caregiver)
	}
	return mapError(err)
}

// freeCaregivers computes freeness as an explicit two-step query: an
// availability row exists and no active appointment holds the pair.
func freeCaregivers(ctx context.Context, q querier, day engine.Date) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.username
		FROM availabilities AS a
		WHERE a.day = ?
		  AND NOT EXISTS (
			SELECT 1 FROM appointments AS b
			WHERE b.caregiver = a.username AND b.day = a.day
		  )
		ORDER BY a.username ASC
	`, day.Key())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var free []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, mapError(err)
		}
		free = append(free, username)
	}
	return free, mapError(rows.Err())
}

func addDoses(ctx context.Context, q querier, vaccine string, count int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO vaccines (name, doses) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET doses = vaccines.doses + excluded.doses
	`, vaccine, count)
	return mapError(err)
}

func stock(ctx context.Context, q querier, vaccine string) (engine.VaccineStock, bool, error) {
	var st engine.VaccineStock
	err := q.QueryRowContext(ctx, `
		SELECT v.name, v.doses,
		       (SELECT COUNT(*) FROM appointments AS a WHERE a.vaccine = v.name)
		FROM vaccines AS v
		WHERE v.name = ?
	`, vaccine).Scan(&st.Name, &st.Total, &st.Consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.VaccineStock{}, false, nil
	}
	if err != nil {
		return engine.VaccineStock{}, false, mapError(err)
	}
	return st, true, nil
}

func allStock(ctx context.Context, q querier) ([]engine.VaccineStock, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT v.name, v.doses,
		       (SELECT COUNT(*) FROM appointments AS a WHERE a.vaccine = v.name)
		FROM vaccines AS v
		ORDER BY v.name ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var all []engine.VaccineStock
	for rows.Next() {
		var st engine.VaccineStock
		if err := rows.Scan(&st.Name, &st.Total, &st.Consumed); err != nil {
			return nil, mapError(err)
		}
		all = append(all, st)
	}
	return all, mapError(rows.Err())
}

// insertAppointment allocates the next id and inserts in one statement, so
// two concurrent bookings cannot compute the same "next" id before either
// commits.
func insertAppointment(ctx context.Context, q querier, appt engine.Appointment) (engine.AppointmentID, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO appointments (id, caregiver, day, patient, vaccine, created_at)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ?, ?, ?, ?
		FROM appointments
	`, appt.Caregiver, appt.Day.Key(), appt.Patient, appt.Vaccine,
		time.Now().UTC().Format(time.RFC3339))
	if isUniqueConstraintError(err) {
		return 0, &engine.DoubleBookingError{Caregiver: appt.Caregiver, Day: appt.Day}
	}
	if isForeignKeyError(err) {
		return 0, fmt.Errorf("%w: appointment references an unknown caregiver, patient, or vaccine", engine.ErrNotFound)
	}
	if err != nil {
		return 0, mapError(err)
	}

	// id is the rowid alias, so LastInsertId is the allocated id.
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapError(err)
	}
	return engine.AppointmentID(id), nil
}

func getAppointment(ctx context.Context, q querier, id engine.AppointmentID) (*engine.Appointment, error) {
	var (
		appt engine.Appointment
		day  string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, caregiver, day, patient, vaccine FROM appointments WHERE id = ?",
		int64(id),
	).Scan(&appt.ID, &appt.Caregiver, &day, &appt.Patient, &appt.Vaccine)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}

	appt.Day, err = engine.ParseKey(day)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func deleteAppointment(ctx context.Context, q querier, id engine.AppointmentID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM appointments WHERE id = ?", int64(id))
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: appointment %d", engine.ErrNotFound, id)
	}
	return nil
}

func appointmentsBy(ctx context.Context, q querier, column, username string) ([]engine.Appointment, error) {
	// column is one of two fixed literals, never user input.
	query := fmt.Sprintf(
		"SELECT id, caregiver, day, patient, vaccine FROM appointments WHERE %s = ? ORDER BY id ASC",
		column,
	)
	rows, err := q.QueryContext(ctx, query, username)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appts []engine.Appointment
	for rows.Next() {
		var (
			appt engine.Appointment
			day  string
		)
		if err := rows.Scan(&appt.ID, &appt.Caregiver, &day, &appt.Patient, &appt.Vaccine); err != nil {
			return nil, mapError(err)
		}
		appt.Day, err = engine.ParseKey(day)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, mapError(rows.Err())
}

func nextAppointmentID(ctx context.Context, q querier) (engine.AppointmentID, error) {
	var next int64
	err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM appointments").Scan(&next)
	if err != nil {
		return 0, mapError(err)
	}
	return engine.AppointmentID(next), nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// mapError translates driver-level failures into the engine taxonomy.
// Contention surfaces as Conflict (the coordinator's bounded retry handles
// it); everything else surfaces as StorageUnavailable so no driver error
// kind escapes this boundary. Constraint violations are mapped by the
// callers before reaching here.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", engine.ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", engine.ErrStorageUnavailable, err)
}
