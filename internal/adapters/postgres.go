package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/queryweaver/models"
)

// PostgresAdapter serves sql-type sources over pgx connection pools
type PostgresAdapter struct {
	pools map[string]*pgxpool.Pool
}

// NewPostgresAdapter creates a pool per configured source. Pools are
// lazy: connections are established on first use.
func NewPostgresAdapter(ctx context.Context, sources []Source) (*PostgresAdapter, error) {
	a := &PostgresAdapter{pools: make(map[string]*pgxpool.Pool)}

	for _, src := range sources {
		pool, err := pgxpool.New(ctx, src.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create pool for source %s: %w", src.ID, err)
		}
		a.pools[src.ID] = pool
	}

	return a, nil
}

func (a *PostgresAdapter) pool(sourceID string) (*pgxpool.Pool, error) {
	pool, ok := a.pools[sourceID]
	if !ok {
		return nil, fmt.Errorf("postgres source not configured: %s", sourceID)
	}
	return pool, nil
}

// Execute runs the operation's SQL text with its bind parameters
func (a *PostgresAdapter) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	pool, err := a.pool(op.SourceID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := pool.Query(ctx, op.Params.Query, op.Params.Args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	result := &models.QueryResult{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]any, len(values))
		copy(row, values)
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Describe reads the information schema for tables, columns and keys
func (a *PostgresAdapter) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	pool, err := a.pool(sourceID)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
		       EXISTS (
		           SELECT 1 FROM information_schema.key_column_usage k
		           JOIN information_schema.table_constraints tc
		             ON k.constraint_name = tc.constraint_name
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND k.table_name = c.table_name
		             AND k.column_name = c.column_name
		       ) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = 'public'
		ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("failed to read information schema: %w", err)
	}
	defer rows.Close()

	schema := &models.SourceSchema{
		SourceID:   sourceID,
		SourceType: models.SourceTypeSQL,
	}
	byTable := make(map[string]int)

	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		var isPK bool
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable, &isPK); err != nil {
			return nil, err
		}

		idx, ok := byTable[tableName]
		if !ok {
			schema.Tables = append(schema.Tables, models.TableSchema{Name: tableName})
			idx = len(schema.Tables) - 1
			byTable[tableName] = idx
		}
		schema.Tables[idx].Columns = append(schema.Tables[idx].Columns, models.ColumnSchema{
			Name:       columnName,
			Type:       dataType,
			Nullable:   nullable == "YES",
			PrimaryKey: isPK,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Approximate row counts from planner statistics; exact counts over
	// large tables are what the result governor exists to avoid
	for i := range schema.Tables {
		var estimate int64
		err := pool.QueryRow(ctx,
			`SELECT COALESCE(reltuples::bigint, 0) FROM pg_class WHERE relname = $1`,
			schema.Tables[i].Name).Scan(&estimate)
		if err == nil && estimate > 0 {
			schema.Tables[i].RowCount = estimate
		}
	}

	return schema, nil
}

// Close closes all connection pools
func (a *PostgresAdapter) Close() error {
	for _, pool := range a.pools {
		pool.Close()
	}
	return nil
}
