/*
Package sqlite provides the SQLite-backed ledger store.

PURPOSE:
  Durable storage for reservations, their append-only payment ledger,
  and read-only catalog reference data. Implements reservation.Store.

KEY TABLES:
  reservations:          one row per stay, versioned for optimistic
                         concurrency control
  reservation_payments:  append-only ledger; no UPDATE or DELETE
                         statements exist for this table
  clients, apartments:   reference data joined into reservation reads
                         for display fields; written only by seed paths

STORAGE FORMATS:
  - Monetary amounts are stored as decimal strings, never floats
  - Timestamps are stored as RFC3339 UTC strings, which sort correctly
    lexicographically; display formatting is an API concern
  - Column names come from the schema mapping in the reservation
    package, the single source of field-name translation

CONCURRENCY:
  Updates carry the expected version and are compiled to
  "... WHERE id = ? AND version = ?"; a stale token affects zero rows
  and surfaces as ErrVersionConflict. Payment registration wraps the
  ledger insert and the balance update in one SQL transaction so a
  ledger entry can never exist without its balance update.

WAL MODE:
  Opened with WAL and foreign keys on.

SEE ALSO:
  - reservation/store.go: Interface and contract notes
  - store/memory: In-memory implementation with identical semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/pricing"
	"github.com/lodgeworks/booking-engine/reservation"
)

// Store implements reservation.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		lastname TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS apartments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		apartment_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		nights TEXT,
		price_per_night TEXT,
		cleaning_fee TEXT,
		cancellation_fee TEXT,
		other_expenses TEXT,
		parking_fee TEXT,
		taxes TEXT,
		total_amount TEXT NOT NULL DEFAULT '0',
		amount_due TEXT NOT NULL DEFAULT '0',
		amount_paid TEXT NOT NULL DEFAULT '0',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		status TEXT NOT NULL DEFAULT 'pending',
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_check_in
		ON reservations(check_in DESC);
	CREATE INDEX IF NOT EXISTS idx_reservations_status
		ON reservations(status);
	CREATE INDEX IF NOT EXISTS idx_reservations_client
		ON reservations(client_id);

	-- Append-only ledger. Corrections happen through administrative
	-- tooling outside this engine, never through normal flows.
	CREATE TABLE IF NOT EXISTS reservation_payments (
		id TEXT PRIMARY KEY,
		reservation_id TEXT NOT NULL REFERENCES reservations(id),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_reservation
		ON reservation_payments(reservation_id, payment_date DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESERVATIONS
// =============================================================================

const reservationColumns = `
	r.id, r.apartment_id, r.client_id, r.check_in, r.check_out,
	r.nights, r.price_per_night, r.cleaning_fee, r.cancellation_fee,
	r.other_expenses, r.parking_fee, r.taxes,
	r.total_amount, r.amount_due, r.amount_paid, r.payment_status,
	r.status, r.notes, r.version, r.created_at, r.updated_at,
	COALESCE(c.name, ''), COALESCE(c.lastname, ''), COALESCE(c.email, ''),
	COALESCE(a.name, ''), COALESCE(a.address, '')`

const reservationFrom = `
	FROM reservations r
	LEFT JOIN clients c ON c.id = r.client_id
	LEFT JOIN apartments a ON a.id = r.apartment_id`

func (s *Store) InsertReservation(ctx context.Context, r *reservation.Reservation) error {
	query := `
		INSERT INTO reservations
		(id, apartment_id, client_id, check_in, check_out,
		 nights, price_per_night, cleaning_fee, cancellation_fee,
		 other_expenses, parking_fee, taxes,
		 total_amount, amount_due, amount_paid, payment_status,
		 status, notes, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ApartmentID, r.ClientID,
		nullTime(r.CheckIn), nullTime(r.CheckOut),
		nullDec(r.Nights), nullDec(r.PricePerNight), nullDec(r.CleaningFee),
		nullDec(r.CancellationFee), nullDec(r.OtherExpenses),
		nullDec(r.ParkingFee), nullDec(r.Taxes),
		r.TotalAmount.String(), r.AmountDue.String(), r.AmountPaid.String(),
		string(r.PaymentStatus), string(r.Status), r.Notes, r.Version,
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	query := "SELECT" + reservationColumns + reservationFrom + " WHERE r.id = ?"
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (s *Store) ListReservations(ctx context.Context, f reservation.Filter) ([]*reservation.Reservation, error) {
	where, args := buildWhere(f)
	query := "SELECT" + reservationColumns + reservationFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.check_in IS NULL, r.check_in DESC, r.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []*reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildWhere compiles the filter into AND-combined clauses. The
// semantics mirror Filter.Matches exactly; combination validation has
// already happened by the time a filter reaches the store.
func buildWhere(f reservation.Filter) ([]string, []any) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.StartDate != nil {
		where = append(where, "r.check_in IS NOT NULL AND r.check_in >= ?")
		args = append(args, f.StartDate.UTC().Format(time.RFC3339))
	}
	if f.EndDate != nil {
		where = append(where, "r.check_in IS NOT NULL AND r.check_in <= ?")
		args = append(args, f.EndDate.UTC().Format(time.RFC3339))
	}
	if f.ClientName != "" {
		where = append(where, "LOWER(c.name) LIKE ?")
		args = append(args, likeArg(f.ClientName))
	}
	if f.ClientLastname != "" {
		where = append(where, "LOWER(c.lastname) LIKE ?")
		args = append(args, likeArg(f.ClientLastname))
	}
	if f.ClientEmail != "" {
		where = append(where, "c.email = ?")
		args = append(args, f.ClientEmail)
	}
	if f.Q != "" {
		where = append(where, "(LOWER(c.name) LIKE ? OR LOWER(c.lastname) LIKE ?)")
		args = append(args, likeArg(f.Q), likeArg(f.Q))
	}
	if f.Upcoming {
		from, until := f.UpcomingWindow()
		where = append(where, "r.check_in IS NOT NULL AND r.check_in >= ?")
		args = append(args, from.UTC().Format(time.RFC3339))
		if until != nil {
			where = append(where, "r.check_in < ?")
			args = append(args, until.UTC().Format(time.RFC3339))
		}
	}
	return where, args
}

func likeArg(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

func (s *Store) UpdateReservation(ctx context.Context, id string, expectedVersion int64, upd reservation.Update) (*reservation.Reservation, error) {
	if err := s.execUpdate(ctx, s.db, id, expectedVersion, upd); err != nil {
		return nil, err
	}
	return s.GetReservation(ctx, id)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execUpdate(ctx context.Context, db execer, id string, expectedVersion int64, upd reservation.Update) error {
	set, args := buildSet(upd)
	set = append(set, "version = version + 1", "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id, expectedVersion)

	query := "UPDATE reservations SET " + strings.Join(set, ", ") + " WHERE id = ? AND version = ?"
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if affected == 0 {
		var exists int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if exists == 0 {
			return reservation.ErrNotFound
		}
		return reservation.ErrVersionConflict
	}
	return nil
}

// buildSet translates the update into SET fragments. Column names are
// resolved through the one field-name dictionary; an API field missing
// from the dictionary is a programming error and panics loudly.
func buildSet(upd reservation.Update) ([]string, []any) {
	var set []string
	var args []any

	add := func(field string, value any) {
		column, ok := reservation.ColumnFor(field)
		if !ok {
			panic(fmt.Sprintf("sqlite: unmapped field %q", field))
		}
		set = append(set, column+" = ?")
		args = append(args, value)
	}

	if upd.ApartmentID != nil {
		add("apartmentId", *upd.ApartmentID)
	}
	if upd.ClientID != nil {
		add("clientId", *upd.ClientID)
	}
	if upd.CheckIn != nil {
		add("checkInDate", upd.CheckIn.UTC().Format(time.RFC3339))
	}
	if upd.CheckOut != nil {
		add("checkOutDate", upd.CheckOut.UTC().Format(time.RFC3339))
	}
	if upd.Nights != nil {
		add("nights", upd.Nights.String())
	}
	if upd.PricePerNight != nil {
		add("pricePerNight", upd.PricePerNight.String())
	}
	if upd.CleaningFee != nil {
		add("cleaningFee", upd.CleaningFee.String())
	}
	if upd.CancellationFee != nil {
		add("cancellationFee", upd.CancellationFee.String())
	}
	if upd.OtherExpenses != nil {
		add("otherExpenses", upd.OtherExpenses.String())
	}
	if upd.ParkingFee != nil {
		add("parkingFee", upd.ParkingFee.String())
	}
	if upd.Taxes != nil {
		add("taxes", upd.Taxes.String())
	}
	if upd.TotalAmount != nil {
		add("totalAmount", upd.TotalAmount.String())
	}
	if upd.AmountDue != nil {
		add("amountDue", upd.AmountDue.String())
	}
	if upd.AmountPaid != nil {
		add("amountPaid", upd.AmountPaid.String())
	}
	if upd.PaymentStatus != nil {
		add("paymentStatus", string(*upd.PaymentStatus))
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	return set, args
}

func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if affected == 0 {
		return reservation.ErrNotFound
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RegisterPayment inserts the ledger row and applies the balance update
// inside one SQL transaction.
func (s *Store) RegisterPayment(ctx context.Context, p *reservation.Payment, expectedVersion int64, upd reservation.Update) (*reservation.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reservation_payments
		(id, reservation_id, amount, payment_date, payment_method,
		 payment_reference, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		p.ID, p.ReservationID, p.Amount.String(),
		p.PaymentDate.UTC().Format(time.RFC3339), p.Method,
		p.Reference, p.Notes, p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := s.execUpdate(ctx, tx, p.ReservationID, expectedVersion, upd); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment transaction: %w", err)
	}
	return s.GetReservation(ctx, p.ReservationID)
}

func (s *Store) ListPayments(ctx context.Context, reservationID string) ([]*reservation.Payment, error) {
	query := `
		SELECT id, reservation_id, amount, payment_date, payment_method,
		       payment_reference, notes, created_at
		FROM reservation_payments
		WHERE reservation_id = ?
		ORDER BY payment_date DESC, created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*reservation.Payment
	for rows.Next() {
		var p reservation.Payment
		var amount, paymentDate, createdAt string
		if err := rows.Scan(&p.ID, &p.ReservationID, &amount, &paymentDate,
			&p.Method, &p.Reference, &p.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("payment %s: bad amount %q: %w", p.ID, amount, err)
		}
		p.PaymentDate, _ = time.Parse(time.RFC3339, paymentDate)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Store) GetClient(ctx context.Context, id string) (*reservation.Client, error) {
	var c reservation.Client
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, lastname, email, phone FROM clients WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Lastname, &c.Email, &c.Phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (s *Store) GetApartment(ctx context.Context, id string) (*reservation.Apartment, error) {
	var a reservation.Apartment
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, address FROM apartments WHERE id = ?", id).
		Scan(&a.ID, &a.Name, &a.Address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get apartment: %w", err)
	}
	return &a, nil
}

// SaveClient upserts reference data. Seed/bootstrap and tests only;
// catalog CRUD is owned by an external collaborator.
func (s *Store) SaveClient(ctx context.Context, c reservation.Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, lastname, email, phone) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, lastname=excluded.lastname,
			email=excluded.email, phone=excluded.phone`,
		c.ID, c.Name, c.Lastname, c.Email, c.Phone)
	if err != nil {
		return fmt.Errorf("save client: %w", err)
	}
	return nil
}

// SaveApartment upserts reference data. Seed/bootstrap and tests only.
func (s *Store) SaveApartment(ctx context.Context, a reservation.Apartment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO apartments (id, name, address) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, address=excluded.address`,
		a.ID, a.Name, a.Address)
	if err != nil {
		return fmt.Errorf("save apartment: %w", err)
	}
	return nil
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*reservation.Reservation, error) {
	var r reservation.Reservation
	var checkIn, checkOut sql.NullString
	var nights, pricePerNight, cleaningFee, cancellationFee sql.NullString
	var otherExpenses, parkingFee, taxes sql.NullString
	var totalAmount, amountDue, amountPaid string
	var paymentStatus, status, createdAt, updatedAt string

	err := row.Scan(
		&r.ID, &r.ApartmentID, &r.ClientID, &checkIn, &checkOut,
		&nights, &pricePerNight, &cleaningFee, &cancellationFee,
		&otherExpenses, &parkingFee, &taxes,
		&totalAmount, &amountDue, &amountPaid, &paymentStatus,
		&status, &r.Notes, &r.Version, &createdAt, &updatedAt,
		&r.ClientName, &r.ClientLastname, &r.ClientEmail,
		&r.ApartmentName, &r.ApartmentAddr,
	)
	if err != nil {
		return nil, err
	}

	r.CheckIn = parseTime(checkIn)
	r.CheckOut = parseTime(checkOut)
	r.Nights = parseDec(nights)
	r.PricePerNight = parseDec(pricePerNight)
	r.CleaningFee = parseDec(cleaningFee)
	r.CancellationFee = parseDec(cancellationFee)
	r.OtherExpenses = parseDec(otherExpenses)
	r.ParkingFee = parseDec(parkingFee)
	r.Taxes = parseDec(taxes)

	if r.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("reservation %s: bad total_amount %q: %w", r.ID, totalAmount, err)
	}
	if r.AmountDue, err = decimal.NewFromString(amountDue); err != nil {
		return nil, fmt.Errorf("reservation %s: bad amount_due %q: %w", r.ID, amountDue, err)
	}
	if r.AmountPaid, err = decimal.NewFromString(amountPaid); err != nil {
		return nil, fmt.Errorf("reservation %s: bad amount_paid %q: %w", r.ID, amountPaid, err)
	}

	r.PaymentStatus = pricing.PaymentStatus(paymentStatus)
	r.Status = reservation.Status(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullDec(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseDec tolerates corrupted stored values: a charge column that does
// not parse comes back nil, and the pricing engine treats it as missing
// instead of propagating garbage.
func parseDec(v sql.NullString) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil
	}
	return &d
}
