package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"datainsight/internal/analysis"
	"datainsight/internal/models"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotConnected  = errors.New("no database connection")
	ErrUnknownTable  = errors.New("table not found")
	ErrUnsupportedDB = errors.New("unsupported data source type")
)

// DataSource is an external SQL source that tables can be profiled from
type DataSource interface {
	Connect(ctx context.Context, config models.DataSourceConfig) error
	Close() error
	ListTables(ctx context.Context) ([]string, error)
	ReadTable(ctx context.Context, tableName string, limit int) (*analysis.Table, error)
}

// PostgresDataSource implements DataSource for PostgreSQL
type PostgresDataSource struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewPostgresDataSource() *PostgresDataSource {
	return &PostgresDataSource{}
}

// connString renders config as a libpq key/value DSN
func connString(config models.DataSourceConfig) string {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := config.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(config.Host), port, quoteDSNValue(config.User), quoteDSNValue(config.Password),
		quoteDSNValue(config.DBName), quoteDSNValue(sslMode))
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connect opens and pings a new connection, replacing any previous one
func (p *PostgresDataSource) Connect(ctx context.Context, config models.DataSourceConfig) error {
	if config.Type != "" && !strings.EqualFold(config.Type, "postgres") {
		return fmt.Errorf("%w: %s", ErrUnsupportedDB, config.Type)
	}

	db, err := sql.Open("postgres", connString(config))
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	p.mu.Lock()
	old := p.db
	p.db = db
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}

	log.WithFields(log.Fields{
		"host":   config.Host,
		"dbname": config.DBName,
		"event":  "db_connected",
	}).Info("Connected to data source")
	return nil
}

func (p *PostgresDataSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		return err
	}
	return nil
}

func (p *PostgresDataSource) conn() (*sql.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrNotConnected
	}
	return p.db, nil
}

func (p *PostgresDataSource) ListTables(ctx context.Context) ([]string, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// ReadTable loads at most limit rows of a listed table
func (p *PostgresDataSource) ReadTable(ctx context.Context, tableName string, limit int) (*analysis.Table, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	// Only tables reported by ListTables may be queried
	tables, err := p.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tables {
		if t == tableName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", pq.QuoteIdentifier(tableName), limit)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &analysis.Table{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make([]analysis.Value, len(columns))
		for i, val := range values {
			// Text and numeric columns arrive as []byte
			if b, ok := val.([]byte); ok {
				row[i] = analysis.ParseCell(string(b))
				continue
			}
			row[i] = analysis.ValueOf(val)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}
