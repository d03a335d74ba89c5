package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yourusername/queryweaver/models"
)

// DocumentAdapter serves document-type sources. Collections are stored as
// SQLite tables of (id, doc) rows where doc is a JSON document; filters
// are equality matches on top-level fields evaluated with json_extract.
type DocumentAdapter struct {
	pools map[string]*sql.DB
}

// NewDocumentAdapter opens a connection per configured source
func NewDocumentAdapter(sources []Source) (*DocumentAdapter, error) {
	a := &DocumentAdapter{pools: make(map[string]*sql.DB)}

	for _, src := range sources {
		db, err := sql.Open("sqlite3", src.DSN+"?_journal_mode=WAL")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open document source %s: %w", src.ID, err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		a.pools[src.ID] = db
	}

	return a, nil
}

func (a *DocumentAdapter) pool(sourceID string) (*sql.DB, error) {
	db, ok := a.pools[sourceID]
	if !ok {
		return nil, fmt.Errorf("document source not configured: %s", sourceID)
	}
	return db, nil
}

// Execute fetches documents from the operation's collection matching its
// filter. Rows come back as {id, doc} pairs with the document as JSON.
func (a *DocumentAdapter) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	db, err := a.pool(op.SourceID)
	if err != nil {
		return nil, err
	}
	if op.Params.Collection == "" {
		return nil, fmt.Errorf("document operation %s names no collection", op.ID)
	}

	query := fmt.Sprintf("SELECT id, doc FROM %q", op.Params.Collection)
	args := make([]any, 0, len(op.Params.Filter))

	if len(op.Params.Filter) > 0 {
		fields := make([]string, 0, len(op.Params.Filter))
		for field := range op.Params.Filter {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		clauses := make([]string, 0, len(fields))
		for _, field := range fields {
			clauses = append(clauses, fmt.Sprintf("json_extract(doc, '$.%s') = ?", field))
			args = append(args, op.Params.Filter[field])
		}
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collection fetch failed: %w", err)
	}
	defer rows.Close()

	result := &models.QueryResult{Columns: []string{"id", "doc"}}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, []any{id, doc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Describe lists collections with document counts. Field names are
// inferred from one sampled document per collection since documents are
// schemaless.
func (a *DocumentAdapter) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	db, err := a.pool(sourceID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := &models.SourceSchema{
		SourceID:   sourceID,
		SourceType: models.SourceTypeDocument,
	}

	for _, name := range names {
		table := models.TableSchema{Name: name}

		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&table.RowCount); err != nil {
			return nil, err
		}

		var sample string
		err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT doc FROM %q LIMIT 1", name)).Scan(&sample)
		if err == nil {
			table.Columns = inferDocumentFields(sample)
		}

		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

// Close closes all source connections
func (a *DocumentAdapter) Close() error {
	var firstErr error
	for _, db := range a.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// inferDocumentFields derives field names and rough types from a sample
// JSON document
func inferDocumentFields(doc string) []models.ColumnSchema {
	var fields map[string]any
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]models.ColumnSchema, 0, len(names))
	for _, name := range names {
		kind := "string"
		switch fields[name].(type) {
		case float64:
			kind = "number"
		case bool:
			kind = "boolean"
		case map[string]any:
			kind = "object"
		case []any:
			kind = "array"
		case nil:
			kind = "null"
		}
		columns = append(columns, models.ColumnSchema{Name: name, Type: kind, Nullable: true})
	}
	return columns
}
