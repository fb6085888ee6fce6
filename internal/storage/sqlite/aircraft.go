package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/yegors/co-radar/internal/aircraftdb"
	"github.com/yegors/co-radar/pkg/logger"
	_ "modernc.org/sqlite"
)

// AircraftStorage is a SQLite-based store of aircraft metadata keyed by
// ICAO address. It backs the remote database lookups.
type AircraftStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAircraftStorage opens (or creates) the database at dbPath
func NewAircraftStorage(dbPath string, log *logger.Logger) (*AircraftStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &AircraftStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *AircraftStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS aircraft_metadata (
			hex TEXT PRIMARY KEY,
			registration TEXT,
			type_code TEXT,
			description TEXT,
			wtc TEXT,
			type_long TEXT,
			operator TEXT,
			year TEXT,
			source TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create aircraft_metadata table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_aircraft_metadata_registration ON aircraft_metadata(registration)`)
	if err != nil {
		return fmt.Errorf("failed to create registration index: %w", err)
	}
	return nil
}

func normalizeHex(hex string) string {
	return strings.ToUpper(strings.TrimSpace(hex))
}

// Get returns the stored record for hex, or aircraftdb.ErrNotFound
func (s *AircraftStorage) Get(ctx context.Context, hex string) (*aircraftdb.Record, error) {
	var rec aircraftdb.Record
	var reg, typ, desc, wtc, long, op, year sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT registration, type_code, description, wtc, type_long, operator, year
		FROM aircraft_metadata WHERE hex = ?
	`, normalizeHex(hex)).Scan(&reg, &typ, &desc, &wtc, &long, &op, &year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, aircraftdb.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft metadata: %w", err)
	}

	rec.Registration = reg.String
	rec.TypeCode = typ.String
	rec.Description = desc.String
	rec.WTC = wtc.String
	rec.TypeLong = long.String
	rec.Operator = op.String
	rec.Year = year.String
	return &rec, nil
}

// Put stores a record fetched from the remote database
func (s *AircraftStorage) Put(ctx context.Context, hex string, rec aircraftdb.Record) error {
	_, err := s.db.ExecContext(ctx, upsertSQL,
		normalizeHex(hex), rec.Registration, rec.TypeCode, rec.Description, rec.WTC,
		rec.TypeLong, rec.Operator, rec.Year, "remote", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store aircraft metadata: %w", err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO aircraft_metadata (hex, registration, type_code, description, wtc, type_long, operator, year, source, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(hex) DO UPDATE SET
		registration = excluded.registration,
		type_code = excluded.type_code,
		description = excluded.description,
		wtc = excluded.wtc,
		type_long = excluded.type_long,
		operator = excluded.operator,
		year = excluded.year,
		source = excluded.source,
		updated_at = excluded.updated_at
`

// Count returns the number of stored records
func (s *AircraftStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aircraft_metadata`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count aircraft metadata: %w", err)
	}
	return n, nil
}

// ImportCSV loads a semicolon separated file whose rows start with
// Hex;Registration;Type. A header row and malformed rows are skipped.
// It returns the number of rows stored.
func (s *AircraftStorage) ImportCSV(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()
	return s.importCSV(ctx, f)
}

func (s *AircraftStorage) importCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare metadata insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	imported, skipped := 0, 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(row) < 3 {
			skipped++
			continue
		}
		hex := normalizeHex(row[0])
		if _, err := aircraftdb.SanitizeKey(hex); err != nil || len(hex) != 6 {
			// Header row or non-ICAO key
			skipped++
			continue
		}
		reg := strings.TrimSpace(row[1])
		typ := strings.TrimSpace(row[2])
		if _, err := stmt.ExecContext(ctx, hex, reg, typ, "", "", "", "", "", "csv", now); err != nil {
			return imported, fmt.Errorf("failed to insert metadata for %s: %w", hex, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit CSV import: %w", err)
	}

	s.logger.Info("Imported aircraft metadata",
		logger.Int("rows", imported),
		logger.Int("skipped", skipped))
	return imported, nil
}
