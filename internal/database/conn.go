package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	errNotConnected  = errors.New("database is not connected")
	errNoTransaction = errors.New("no transaction in progress")
	// errRolledBack is returned by the outermost Commit after a nested
	// Rollback.
	errRolledBack = errors.New("transaction rolled back by a nested rollback")
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn is the database/sql plumbing shared by the drivers. Transactions
// are reference counted: nested Begin calls join the outer transaction.
type conn struct {
	db     *sql.DB
	tx     *sql.Tx
	depth  int
	failed bool
}

func (c *conn) target() (queryer, error) {
	if c.db == nil {
		return nil, errNotConnected
	}
	if c.tx != nil {
		return c.tx, nil
	}
	return c.db, nil
}

// Close closes the connection, rolling back an open transaction.
func (c *conn) Close() error {
	if c.db == nil {
		return nil
	}
	var txErr error
	if c.tx != nil {
		txErr = c.tx.Rollback()
		c.tx, c.depth = nil, 0
	}
	err := c.db.Close()
	c.db = nil
	return errors.Join(txErr, err)
}

// Exec runs a statement that returns no rows.
func (c *conn) Exec(ctx context.Context, query string, args ...any) error {
	q, err := c.target()
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute %q: %w", query, err)
	}
	return nil
}

// Query runs a statement and returns every row.
func (c *conn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	q, err := c.target()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Begin starts a transaction or joins the one in progress.
func (c *conn) Begin(ctx context.Context) error {
	if c.db == nil {
		return errNotConnected
	}
	if c.depth == 0 {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		c.tx = tx
		c.failed = false
	}
	c.depth++
	return nil
}

// Commit leaves one nesting level and commits at the outermost one.
func (c *conn) Commit() error {
	if c.depth == 0 {
		return errNoTransaction
	}
	c.depth--
	if c.depth > 0 {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if c.failed {
		return errors.Join(errRolledBack, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback leaves one nesting level. A nested rollback marks the outer
// transaction so that its Commit rolls back instead.
func (c *conn) Rollback() error {
	if c.depth == 0 {
		return errNoTransaction
	}
	c.depth--
	if c.depth > 0 {
		c.failed = true
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
