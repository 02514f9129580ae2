package export

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/cottand/qinfer/internal/log"
	_ "modernc.org/sqlite"
)

var logger = log.DefaultLogger.With("section", "export")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	type_system TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS qualifiers (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	name       TEXT NOT NULL,
	supertype  TEXT
);
CREATE TABLE IF NOT EXISTS slots (
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	id          INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	location    TEXT,
	qualifier   TEXT,
	refined     INTEGER,
	potential   INTEGER,
	alternative INTEGER,
	left_slot   INTEGER,
	right_slot  INTEGER,
	PRIMARY KEY (session_id, id)
);
CREATE TABLE IF NOT EXISTS constraints (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	position   INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	first      INTEGER NOT NULL,
	second     INTEGER NOT NULL,
	PRIMARY KEY (session_id, position)
);
CREATE TABLE IF NOT EXISTS failures (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	message    TEXT NOT NULL
);`

const (
	insertSession    = `INSERT INTO sessions (id, type_system) VALUES (?, ?)`
	insertQualifier  = `INSERT INTO qualifiers (session_id, name, supertype) VALUES (?, ?, ?)`
	insertSlot       = `INSERT INTO slots (session_id, id, kind, location, qualifier, refined, potential, alternative, left_slot, right_slot) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertConstraint = `INSERT INTO constraints (session_id, position, kind, first, second) VALUES (?, ?, ?, ?, ?)`
	insertFailure    = `INSERT INTO failures (session_id, message) VALUES (?, ?)`
)

// SQLiteStore keeps documents in a SQLite database, one row per slot and per constraint
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens, creating it if needed, the database at path. ":memory:" is a
// private in-memory database
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	// an in-memory database lives as long as its connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save writes doc in a single transaction
func (s *SQLiteStore) Save(ctx context.Context, doc *Document) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, insertSession, doc.Session, doc.TypeSystem); err != nil {
		return errors.Wrapf(err, "failed to insert session %s", doc.Session)
	}
	for _, q := range doc.Qualifiers {
		if len(q.Supertypes) == 0 {
			if _, err := tx.ExecContext(ctx, insertQualifier, doc.Session, q.Name, nil); err != nil {
				return errors.Wrapf(err, "failed to insert qualifier %s", q.Name)
			}
			continue
		}
		for _, super := range q.Supertypes {
			if _, err := tx.ExecContext(ctx, insertQualifier, doc.Session, q.Name, super); err != nil {
				return errors.Wrapf(err, "failed to insert qualifier %s", q.Name)
			}
		}
	}
	for _, slot := range doc.Slots {
		_, err := tx.ExecContext(ctx, insertSlot, doc.Session, slot.ID, slot.Kind,
			nullString(slot.Location), nullString(slot.Qualifier),
			nullID(slot.Refined), nullID(slot.Potential), nullID(slot.Alternative), nullID(slot.Left), nullID(slot.Right))
		if err != nil {
			return errors.Wrapf(err, "failed to insert slot %d", slot.ID)
		}
	}
	for i, c := range doc.Constraints {
		if _, err := tx.ExecContext(ctx, insertConstraint, doc.Session, i, c.Kind, c.First, c.Second); err != nil {
			return errors.Wrapf(err, "failed to insert constraint %d", i)
		}
	}
	for _, failure := range doc.Failures {
		if _, err := tx.ExecContext(ctx, insertFailure, doc.Session, failure); err != nil {
			return errors.Wrap(err, "failed to insert failure")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit")
	}
	logger.Info("saved session", "session", doc.Session, "slots", len(doc.Slots), "constraints", len(doc.Constraints))
	return nil
}

// Load reads back the document of session
func (s *SQLiteStore) Load(ctx context.Context, session string) (*Document, error) {
	doc := &Document{Session: session}
	err := s.db.QueryRowContext(ctx, `SELECT type_system FROM sessions WHERE id = ?`, session).Scan(&doc.TypeSystem)
	if err != nil {
		return nil, errors.Wrapf(err, "no session %s", session)
	}
	if doc.Qualifiers, err = s.loadQualifiers(ctx, session); err != nil {
		return nil, err
	}
	if doc.Slots, err = s.loadSlots(ctx, session); err != nil {
		return nil, err
	}
	if doc.Constraints, err = s.loadConstraints(ctx, session); err != nil {
		return nil, err
	}
	if doc.Failures, err = s.loadFailures(ctx, session); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStore) loadQualifiers(ctx context.Context, session string) ([]Qualifier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, supertype FROM qualifiers WHERE session_id = ? ORDER BY rowid`, session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query qualifiers")
	}
	defer rows.Close()
	var qs []Qualifier
	index := make(map[string]int)
	for rows.Next() {
		var name string
		var super sql.NullString
		if err := rows.Scan(&name, &super); err != nil {
			return nil, errors.Wrap(err, "failed to scan qualifier")
		}
		i, ok := index[name]
		if !ok {
			i = len(qs)
			index[name] = i
			qs = append(qs, Qualifier{Name: name})
		}
		if super.Valid {
			qs[i].Supertypes = append(qs[i].Supertypes, super.String)
		}
	}
	return qs, rows.Err()
}

func (s *SQLiteStore) loadSlots(ctx context.Context, session string) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, location, qualifier, refined, potential, alternative, left_slot, right_slot
		FROM slots WHERE session_id = ? ORDER BY id`, session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query slots")
	}
	defer rows.Close()
	var slots []Slot
	for rows.Next() {
		var slot Slot
		var location, qualifier sql.NullString
		var refined, potential, alternative, left, right sql.NullInt64
		if err := rows.Scan(&slot.ID, &slot.Kind, &location, &qualifier, &refined, &potential, &alternative, &left, &right); err != nil {
			return nil, errors.Wrap(err, "failed to scan slot")
		}
		slot.Location, slot.Qualifier = location.String, qualifier.String
		slot.Refined, slot.Potential, slot.Alternative = uint64(refined.Int64), uint64(potential.Int64), uint64(alternative.Int64)
		slot.Left, slot.Right = uint64(left.Int64), uint64(right.Int64)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *SQLiteStore) loadConstraints(ctx context.Context, session string) ([]Constraint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, first, second FROM constraints WHERE session_id = ? ORDER BY position`, session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query constraints")
	}
	defer rows.Close()
	var constraints []Constraint
	for rows.Next() {
		var c Constraint
		if err := rows.Scan(&c.Kind, &c.First, &c.Second); err != nil {
			return nil, errors.Wrap(err, "failed to scan constraint")
		}
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

func (s *SQLiteStore) loadFailures(ctx context.Context, session string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT message FROM failures WHERE session_id = ? ORDER BY rowid`, session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query failures")
	}
	defer rows.Close()
	var failures []string
	for rows.Next() {
		var message string
		if err := rows.Scan(&message); err != nil {
			return nil, errors.Wrap(err, "failed to scan failure")
		}
		failures = append(failures, message)
	}
	return failures, rows.Err()
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

func nullID(id uint64) sql.NullInt64 { return sql.NullInt64{Int64: int64(id), Valid: id != 0} }
