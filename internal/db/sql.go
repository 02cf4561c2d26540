package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"law_arch/internal/models"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS sections (
	record_key    TEXT PRIMARY KEY,
	jurisdiction  TEXT NOT NULL,
	act_key       TEXT NOT NULL,
	citation      TEXT NOT NULL,
	position      INTEGER NOT NULL,
	heading       TEXT NOT NULL,
	document      TEXT NOT NULL,
	xml           TEXT NOT NULL,
	raw_checksum  TEXT NOT NULL,
	source_format TEXT NOT NULL,
	updated_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS sections_act ON sections (act_key, position);
CREATE TABLE IF NOT EXISTS acts (
	record_key    TEXT PRIMARY KEY,
	jurisdiction  TEXT NOT NULL,
	citation      TEXT NOT NULL,
	title         TEXT NOT NULL,
	section_count INTEGER NOT NULL,
	section_keys  TEXT NOT NULL,
	xml           TEXT NOT NULL,
	updated_at    BIGINT NOT NULL
)`

// SQLStore keeps records in a relational database: an embedded SQLite file
// or a PostgreSQL server.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	return err
}

func (s *SQLStore) UpsertSection(ctx context.Context, rec models.SectionRecord) error {
	err := s.exec(ctx,
		`INSERT INTO sections (
			record_key, jurisdiction, act_key, citation, position, heading,
			document, xml, raw_checksum, source_format, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_key) DO UPDATE SET
			jurisdiction = excluded.jurisdiction,
			act_key = excluded.act_key,
			citation = excluded.citation,
			position = excluded.position,
			heading = excluded.heading,
			document = excluded.document,
			xml = excluded.xml,
			raw_checksum = excluded.raw_checksum,
			source_format = excluded.source_format,
			updated_at = excluded.updated_at`,
		rec.Key, rec.Jurisdiction, rec.ActKey, rec.Citation, rec.Position, rec.Heading,
		rec.Document, rec.XML, rec.RawChecksum, rec.SourceFormat, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error upserting section %s: %w", rec.Key, err)
	}
	return nil
}

const sectionColumns = `record_key, jurisdiction, act_key, citation, position, heading,
	document, xml, raw_checksum, source_format, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSection(row scanner) (models.SectionRecord, error) {
	var rec models.SectionRecord
	err := row.Scan(
		&rec.Key,
		&rec.Jurisdiction,
		&rec.ActKey,
		&rec.Citation,
		&rec.Position,
		&rec.Heading,
		&rec.Document,
		&rec.XML,
		&rec.RawChecksum,
		&rec.SourceFormat,
		&rec.UpdatedAt,
	)
	return rec, err
}

func (s *SQLStore) GetSection(ctx context.Context, key string) (*models.SectionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT `+sectionColumns+` FROM sections WHERE record_key = ?`), key)
	rec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding section %s: %w", key, err)
	}
	return &rec, nil
}

func (s *SQLStore) SectionsByAct(ctx context.Context, actKey string) ([]models.SectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT `+sectionColumns+` FROM sections
		WHERE act_key = ?
		ORDER BY position, record_key`), actKey)
	if err != nil {
		return nil, fmt.Errorf("error finding sections of %s: %w", actKey, err)
	}
	defer rows.Close()

	var out []models.SectionRecord
	for rows.Next() {
		rec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning section row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating section rows: %w", err)
	}
	return out, nil
}

func (s *SQLStore) UpsertAct(ctx context.Context, rec models.ActRecord) error {
	keys, err := json.Marshal(rec.SectionKeys)
	if err != nil {
		return err
	}
	err = s.exec(ctx,
		`INSERT INTO acts (
			record_key, jurisdiction, citation, title, section_count, section_keys, xml, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_key) DO UPDATE SET
			jurisdiction = excluded.jurisdiction,
			citation = excluded.citation,
			title = excluded.title,
			section_count = excluded.section_count,
			section_keys = excluded.section_keys,
			xml = excluded.xml,
			updated_at = excluded.updated_at`,
		rec.Key, rec.Jurisdiction, rec.Citation, rec.Title, rec.SectionCount, string(keys), rec.XML, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error upserting act %s: %w", rec.Key, err)
	}
	return nil
}

func (s *SQLStore) GetAct(ctx context.Context, key string) (*models.ActRecord, error) {
	var rec models.ActRecord
	var keys string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT record_key, jurisdiction, citation, title, section_count, section_keys, xml, updated_at
		FROM acts WHERE record_key = ?`), key).Scan(
		&rec.Key,
		&rec.Jurisdiction,
		&rec.Citation,
		&rec.Title,
		&rec.SectionCount,
		&keys,
		&rec.XML,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding act %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(keys), &rec.SectionKeys); err != nil {
		return nil, fmt.Errorf("act %s section keys: %w", key, err)
	}
	return &rec, nil
}

func (s *SQLStore) Stats(ctx context.Context, jurisdiction string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT
			(SELECT COUNT(*) FROM sections WHERE jurisdiction = ?),
			(SELECT COUNT(*) FROM acts WHERE jurisdiction = ?)`),
		jurisdiction, jurisdiction).Scan(&st.Sections, &st.Acts)
	if err != nil {
		return Stats{}, fmt.Errorf("error counting %s: %w", jurisdiction, err)
	}
	return st, nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }
