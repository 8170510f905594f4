package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/parser"
	"github.com/koba/schema-sync/internal/schema"
)

// mysqlErrNoSuchTable is ER_NO_SUCH_TABLE.
const mysqlErrNoSuchTable = 1146

// MySQL implements the Driver interface for MySQL
type MySQL struct {
	conn
	config Config
}

var _ Driver = (*MySQL)(nil)

// NewMySQL creates a new MySQL database connection
func NewMySQL(config Config) *MySQL {
	return &MySQL{config: config}
}

func (m *MySQL) Dialect() schema.Dialect { return schema.MySQL }

func (m *MySQL) dsn() string {
	cfg := mysql.NewConfig()
	cfg.User = m.config.User
	cfg.Passwd = m.config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.config.Host, m.config.Port)
	cfg.DBName = m.config.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Connect establishes a connection to MySQL
func (m *MySQL) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", m.dsn())
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m.db = db
	return nil
}

func (m *MySQL) QuoteIdentifier(name string) string {
	return schema.QuoteIdent(name)
}

// EscapeLike escapes the LIKE wildcards with a backslash.
func (m *MySQL) EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return strings.ReplaceAll(s, "%", `\%`)
}

// Tables retrieves all table and view names in the database
func (m *MySQL) Tables(ctx context.Context) ([]string, error) {
	rows, err := m.Query(ctx,
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME",
		m.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, row.String("TABLE_NAME"))
	}
	return tables, nil
}

// ShowCreate returns the CREATE TABLE or CREATE VIEW text of an object.
func (m *MySQL) ShowCreate(ctx context.Context, name string) (string, error) {
	create, _, err := m.showCreate(ctx, name)
	return create, err
}

func (m *MySQL) showCreate(ctx context.Context, name string) (create string, isView bool, err error) {
	rows, err := m.Query(ctx, "SHOW CREATE TABLE "+m.QuoteIdentifier(name))
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlErrNoSuchTable {
			nf := apperrors.NewNotFound("table", name)
			nf.Err = err
			return "", false, nf
		}
		return "", false, fmt.Errorf("failed to show create table %s: %w", name, err)
	}
	if len(rows) == 0 {
		return "", false, apperrors.NewNotFound("table", name)
	}
	if _, ok := rows[0]["Create View"]; ok {
		return rows[0].String("Create View"), true, nil
	}
	return rows[0].String("Create Table"), false, nil
}

// Describe reads a table or view back into a validated schema object.
// SHOW TABLE STATUS and SHOW FULL COLUMNS supply the collations and row
// format SHOW CREATE TABLE leaves implicit.
func (m *MySQL) Describe(ctx context.Context, name string) (*schema.Object, error) {
	create, isView, err := m.showCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	if isView {
		v, err := parser.ParseMySQLView(create)
		if err != nil {
			return nil, err
		}
		return schema.NewMySQLViewObject(v), nil
	}

	in := parser.MySQLTableInput{CreateSQL: create}
	status, err := m.Query(ctx, "SHOW TABLE STATUS LIKE ?", m.EscapeLike(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get table status for %s: %w", name, err)
	}
	if len(status) > 0 {
		in.Status = &parser.StatusRow{
			Engine:    status[0].String("Engine"),
			Collation: status[0].String("Collation"),
			RowFormat: status[0].String("Row_format"),
		}
	}

	columns, err := m.Query(ctx, "SHOW FULL COLUMNS FROM "+m.QuoteIdentifier(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", name, err)
	}
	for _, col := range columns {
		in.Columns = append(in.Columns, parser.ColumnRow{
			Field:     col.String("Field"),
			Collation: col.String("Collation"),
		})
	}

	t, err := parser.ParseMySQLTable(in)
	if err != nil {
		return nil, err
	}
	return schema.NewMySQLTableObject(t), nil
}

// CurrentUser returns the account the session is authenticated as, in
// user@host form.
func (m *MySQL) CurrentUser(ctx context.Context) (string, error) {
	rows, err := m.Query(ctx, "SELECT CURRENT_USER() AS user")
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].String("user"), nil
}
