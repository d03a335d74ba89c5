package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yourusername/queryweaver/models"
)

// SQLiteAdapter serves sql-type sources backed by local SQLite files
type SQLiteAdapter struct {
	pools map[string]*sql.DB
}

// NewSQLiteAdapter opens a connection per configured source
func NewSQLiteAdapter(sources []Source) (*SQLiteAdapter, error) {
	a := &SQLiteAdapter{pools: make(map[string]*sql.DB)}

	for _, src := range sources {
		db, err := sql.Open("sqlite3", src.DSN+"?_journal_mode=WAL")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open sqlite source %s: %w", src.ID, err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		a.pools[src.ID] = db
	}

	return a, nil
}

func (a *SQLiteAdapter) pool(sourceID string) (*sql.DB, error) {
	db, ok := a.pools[sourceID]
	if !ok {
		return nil, fmt.Errorf("sqlite source not configured: %s", sourceID)
	}
	return db, nil
}

// Execute runs the operation's SQL text with its bind parameters
func (a *SQLiteAdapter) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	db, err := a.pool(op.SourceID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, op.Params.Query, op.Params.Args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Describe enumerates tables, columns, primary keys and row counts
func (a *SQLiteAdapter) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	db, err := a.pool(sourceID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := &models.SourceSchema{
		SourceID:   sourceID,
		SourceType: models.SourceTypeSQL,
	}

	for _, name := range tableNames {
		table := models.TableSchema{Name: name}

		colRows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
		}
		for colRows.Next() {
			var cid int
			var colName, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := colRows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, err
			}
			table.Columns = append(table.Columns, models.ColumnSchema{
				Name:       colName,
				Type:       colType,
				Nullable:   notNull == 0,
				PrimaryKey: pk > 0,
			})
		}
		colRows.Close()

		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&table.RowCount); err != nil {
			return nil, err
		}

		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

// Close closes all source connections
func (a *SQLiteAdapter) Close() error {
	var firstErr error
	for _, db := range a.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
