// ABOUTME: SQL implementation of the Store interface for SQLite and PostgreSQL
// ABOUTME: Creates the compliance schema and serves per-invocation sessions over *sql.Conn

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavor a SQLStore speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// PoolOptions tunes the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	catalog Catalog
	logger  *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLStore{
		db:      db,
		dialect: DialectSQLite,
		catalog: DefaultCatalog(),
		logger:  logger,
	}

	if err := s.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// NewPostgresStore connects to PostgreSQL using a lib/pq connection URL.
func NewPostgresStore(ctx context.Context, dsn string, opts PoolOptions) (*SQLStore, error) {
	logger := slog.Default().With("component", "store")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLStore{
		db:      db,
		dialect: DialectPostgres,
		catalog: DefaultCatalog(),
		logger:  logger,
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("PostgreSQL store initialized",
		"max_open_conns", opts.MaxOpenConns,
		"max_idle_conns", opts.MaxIdleConns,
	)
	return s, nil
}

// Catalog returns the entities served by this store.
func (s *SQLStore) Catalog() Catalog {
	return s.catalog
}

// Dialect reports which SQL flavor the store speaks.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Acquire reserves a dedicated connection for one invocation.
func (s *SQLStore) Acquire(ctx context.Context) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &sqlSession{store: s, conn: conn}, nil
}

// createSchema creates the compliance tables if they don't exist.
func (s *SQLStore) createSchema(ctx context.Context) error {
	for _, e := range s.catalog {
		if _, err := s.db.ExecContext(ctx, s.createTableSQL(e)); err != nil {
			return fmt.Errorf("creating table %s: %w", e.Table, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_pilots_certificate ON pilots(certificate_number)",
		"CREATE INDEX IF NOT EXISTS idx_aircraft_registration ON aircraft(registration)",
		"CREATE INDEX IF NOT EXISTS idx_flights_pilot ON flights(pilot_id)",
		"CREATE INDEX IF NOT EXISTS idx_flights_aircraft ON flights(aircraft_id)",
		"CREATE INDEX IF NOT EXISTS idx_missions_flight ON missions(flight_id)",
		"CREATE INDEX IF NOT EXISTS idx_maintenance_aircraft_date ON maintenance_records(aircraft_id, date)",
	}
	for _, stmt := range indexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// createTableSQL renders CREATE TABLE for an entity in the store's dialect.
// The first column is the primary key; an integer key auto-increments.
func (s *SQLStore) createTableSQL(e Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", e.Table)
	for i, c := range e.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		if i == 0 {
			b.WriteString(s.primaryKeyType(c))
			continue
		}
		b.WriteString(s.columnType(c))
	}
	b.WriteString(", created_at TEXT")
	b.WriteString(")")
	return b.String()
}

func (s *SQLStore) primaryKeyType(c Column) string {
	if c.Type == TypeInteger {
		if s.dialect == DialectPostgres {
			return "SERIAL PRIMARY KEY"
		}
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "TEXT PRIMARY KEY"
}

func (s *SQLStore) columnType(c Column) string {
	switch c.Type {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		if s.dialect == DialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case TypeBool:
		if s.dialect == DialectPostgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	default:
		// Dates and timestamps are stored as ISO-8601 text in both dialects
		return "TEXT"
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insert writes one record into an entity's table. Columns absent from the
// record are left to their defaults.
func (s *SQLStore) insert(ctx context.Context, e Entity, rec Record) error {
	cols := make([]string, 0, len(e.Columns)+1)
	args := make([]any, 0, len(e.Columns)+1)
	for _, c := range e.Columns {
		v, ok := rec[c.Name]
		if !ok {
			continue
		}
		arg, err := encode(c, v)
		if err != nil {
			return err
		}
		cols = append(cols, c.Name)
		args = append(args, arg)
	}
	cols = append(cols, "created_at")
	args = append(args, time.Now().UTC().Format(time.RFC3339))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.Table, strings.Join(cols, ", "), placeholders)

	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("inserting into %s: %w", e.Table, err)
	}
	return nil
}

// count returns the number of rows in an entity's table.
func (s *SQLStore) count(ctx context.Context, e Entity) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.Table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", e.Table, err)
	}
	return n, nil
}

// sqlSession is a Session bound to a single pooled connection.
type sqlSession struct {
	store *SQLStore
	conn  *sql.Conn
}

func (ss *sqlSession) Lookup(ctx context.Context, entity, id string) (Record, error) {
	e, ok := ss.store.catalog.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	for _, key := range e.LookupKeys {
		col, _ := e.Column(key)
		var arg any = id
		if col.Type == TypeInteger {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				continue
			}
			arg = n
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1",
			strings.Join(e.ColumnNames(), ", "), e.Table, key)
		rows, err := ss.conn.QueryContext(ctx, ss.store.rebind(query), arg)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", entity, err)
		}
		records, err := scanRecords(rows, e.Columns)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", entity, err)
		}
		if len(records) > 0 {
			return records[0], nil
		}
	}
	return nil, ErrNotFound
}

func (ss *sqlSession) Query(ctx context.Context, q Query) ([]Record, error) {
	e, err := ss.store.catalog.resolve(q)
	if err != nil {
		return nil, err
	}
	cols := e.selectedColumns(q.Fields)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(names, ", "), e.Table)

	var args []any
	if len(q.Filters) > 0 {
		// Iterate in column order so the generated SQL is deterministic
		conds := make([]string, 0, len(q.Filters))
		for _, c := range e.Columns {
			v, ok := q.Filters[c.Name]
			if !ok {
				continue
			}
			conds = append(conds, c.Name+" = ?")
			args = append(args, v)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", q.OrderBy)
		if q.Descending {
			b.WriteString(" DESC")
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	b.WriteString(" LIMIT ?")
	args = append(args, limit)

	rows, err := ss.conn.QueryContext(ctx, ss.store.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", e.Name, err)
	}
	records, err := scanRecords(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", e.Name, err)
	}
	return records, nil
}

func (ss *sqlSession) Release() {
	if ss.conn == nil {
		return
	}
	if err := ss.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		ss.store.logger.Warn("releasing connection", "error", err)
	}
	ss.conn = nil
}

// scanRecords reads every row into a Record and closes rows.
func scanRecords(rows *sql.Rows, cols []Column) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			v, err := normalize(c, raw[i])
			if err != nil {
				return nil, err
			}
			rec[c.Name] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return records, nil
}
