package schema

import (
	"errors"
	"testing"

	apperrors "github.com/koba/schema-sync/internal/errors"
)

func normalizedTable(fields []*MySQLField, indexes []*MySQLIndex) *MySQLTable {
	t := &MySQLTable{
		Name:    "t",
		Status:  MySQLStatus{Engine: "InnoDB", Charset: "utf8mb3", Collate: "utf8_general_ci"},
		Fields:  fields,
		Indexes: indexes,
	}
	t.Normalize()
	return t
}

func TestMySQLFieldSQL(t *testing.T) {
	tests := []struct {
		name  string
		field *MySQLField
		want  string
	}{
		{
			name:  "unsigned auto increment",
			field: &MySQLField{Name: "id", Type: "int", Attr: "10", Unsigned: true, AutoIncrement: true},
			want:  "`id` int(10) unsigned NOT NULL auto_increment",
		},
		{
			name:  "bare int gets display width",
			field: &MySQLField{Name: "n", Type: "INT"},
			want:  "`n` int(11) NOT NULL",
		},
		{
			name:  "bare unsigned int gets display width",
			field: &MySQLField{Name: "n", Type: "int", Unsigned: true},
			want:  "`n` int(10) unsigned NOT NULL",
		},
		{
			name:  "varchar inherits table charset",
			field: &MySQLField{Name: "name", Type: "varchar", Attr: "200", Comment: "display name"},
			want:  "`name` varchar(200) CHARACTER SET utf8mb3 COLLATE utf8_general_ci NOT NULL COMMENT 'display name'",
		},
		{
			name:  "text keeps explicit charset and skips default",
			field: &MySQLField{Name: "body", Type: "text", Charset: "utf8mb4", Collate: "utf8mb4_bin", Nullable: true},
			want:  "`body` text CHARACTER SET utf8mb4 COLLATE utf8mb4_bin",
		},
		{
			name:  "decimal default",
			field: &MySQLField{Name: "price", Type: "decimal", Attr: "20,2", Default: ValueDefault("0.00")},
			want:  "`price` decimal(20,2) NOT NULL DEFAULT '0.00'",
		},
		{
			name:  "nullable gets DEFAULT NULL",
			field: &MySQLField{Name: "size", Type: "enum", Attr: "'Small','Medium','Large'", Nullable: true},
			want:  "`size` enum('Small','Medium','Large') DEFAULT NULL",
		},
		{
			name:  "non char type drops charset",
			field: &MySQLField{Name: "n", Type: "bigint", Charset: "utf8mb4"},
			want:  "`n` bigint(20) NOT NULL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalizedTable([]*MySQLField{tt.field}, nil)
			if got := tt.field.SQL(); got != tt.want {
				t.Errorf("SQL() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestMySQLFieldSQLWithoutAutoIncrement(t *testing.T) {
	f := &MySQLField{Name: "id", Type: "int", Attr: "10", Unsigned: true, AutoIncrement: true}
	if got, want := f.SQLWithoutAutoIncrement(), "`id` int(10) unsigned NOT NULL"; got != want {
		t.Errorf("SQLWithoutAutoIncrement() = %q, want %q", got, want)
	}
}

func TestMySQLIndexSQL(t *testing.T) {
	tests := []struct {
		name       string
		index      *MySQLIndex
		wantCreate string
		wantAlter  string
		wantDrop   string
	}{
		{
			name:       "primary",
			index:      &MySQLIndex{Name: PrimaryKey, Fields: []string{"a", "b"}},
			wantCreate: "PRIMARY KEY (`a`,`b`)",
			wantAlter:  "PRIMARY KEY (`a`,`b`)",
			wantDrop:   "DROP PRIMARY KEY",
		},
		{
			name:       "unique with comment",
			index:      &MySQLIndex{Name: "uniq", Fields: []string{"email"}, Unique: true, Comment: "login"},
			wantCreate: "UNIQUE KEY `uniq` (`email`) COMMENT 'login'",
			wantAlter:  "UNIQUE `uniq` (`email`) COMMENT 'login'",
			wantDrop:   "DROP INDEX `uniq`",
		},
		{
			name:       "fulltext",
			index:      &MySQLIndex{Name: "ft", Fields: []string{"body"}, Fulltext: true},
			wantCreate: "FULLTEXT KEY `ft` (`body`)",
			wantAlter:  "FULLTEXT `ft` (`body`)",
			wantDrop:   "DROP INDEX `ft`",
		},
		{
			name:       "prefix member",
			index:      &MySQLIndex{Name: "mix", Fields: []string{"name(10)", "id"}},
			wantCreate: "KEY `mix` (`name`(10),`id`)",
			wantAlter:  "INDEX `mix` (`name`(10),`id`)",
			wantDrop:   "DROP INDEX `mix`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.index.CreateSQL(); got != tt.wantCreate {
				t.Errorf("CreateSQL() = %q, want %q", got, tt.wantCreate)
			}
			if got := tt.index.AlterSQL(); got != tt.wantAlter {
				t.Errorf("AlterSQL() = %q, want %q", got, tt.wantAlter)
			}
			if got := tt.index.DropSQL(); got != tt.wantDrop {
				t.Errorf("DropSQL() = %q, want %q", got, tt.wantDrop)
			}
		})
	}
}

func TestMySQLTableCreateSQL(t *testing.T) {
	def := Definition{
		Name: "t",
		Fields: FieldDefinitions{
			{Name: "id", Type: "int", Attr: "10", Unsigned: true, AutoIncrement: true},
		},
		Indexes: IndexDefinitions{
			{Name: "PRIMARY", Fields: []string{"id"}},
		},
	}
	obj, err := def.Object(MySQL)
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS `t` (`id` int(10) unsigned NOT NULL auto_increment,PRIMARY KEY (`id`)) ENGINE=innodb DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci"
	if got := obj.MySQLTable.CreateSQL(); got != want {
		t.Errorf("CreateSQL() =\n%s\nwant\n%s", got, want)
	}
}

func TestMySQLStatusSQL(t *testing.T) {
	s := MySQLStatus{Engine: "MyISAM", Charset: "latin1", Collate: "latin1_swedish_ci", Comment: "log's", Checksum: "1", RowFormat: "DYNAMIC"}
	s.normalize()
	want := "ENGINE=myisam DEFAULT CHARSET=latin1 COLLATE=latin1_swedish_ci CHECKSUM=1 ROW_FORMAT=dynamic COMMENT='log''s'"
	if got := s.SQL(); got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}
}

func TestMySQLTableValidate(t *testing.T) {
	id := func() *MySQLField { return &MySQLField{Name: "id", Type: "int", AutoIncrement: true} }
	tests := []struct {
		name    string
		fields  []*MySQLField
		indexes []*MySQLIndex
		wantErr bool
	}{
		{
			name:    "valid",
			fields:  []*MySQLField{id(), {Name: "a", Type: "int"}},
			indexes: []*MySQLIndex{{Name: "PRIMARY", Fields: []string{"id"}}, {Name: "a", Fields: []string{"a"}}},
		},
		{
			name:    "auto increment without primary",
			fields:  []*MySQLField{id()},
			wantErr: true,
		},
		{
			name:    "auto increment shares primary",
			fields:  []*MySQLField{id(), {Name: "a", Type: "int"}},
			indexes: []*MySQLIndex{{Name: "PRIMARY", Fields: []string{"id", "a"}}},
			wantErr: true,
		},
		{
			name:    "two auto increment fields",
			fields:  []*MySQLField{id(), {Name: "b", Type: "int", AutoIncrement: true}},
			indexes: []*MySQLIndex{{Name: "PRIMARY", Fields: []string{"id"}}},
			wantErr: true,
		},
		{
			name:    "duplicate primary",
			fields:  []*MySQLField{{Name: "a", Type: "int"}},
			indexes: []*MySQLIndex{{Name: "PRIMARY", Fields: []string{"a"}}, {Name: "primary", Fields: []string{"a"}}},
			wantErr: true,
		},
		{
			name:    "unknown member",
			fields:  []*MySQLField{{Name: "a", Type: "int"}},
			indexes: []*MySQLIndex{{Name: "k", Fields: []string{"b(4)"}}},
			wantErr: true,
		},
		{
			name:    "duplicate field",
			fields:  []*MySQLField{{Name: "a", Type: "int"}, {Name: "a", Type: "text"}},
			wantErr: true,
		},
		{
			name:    "text with value default",
			fields:  []*MySQLField{{Name: "a", Type: "int"}, {Name: "body", Type: "text", Default: ValueDefault("x")}},
			wantErr: true,
		},
		{
			name:    "blob with value default",
			fields:  []*MySQLField{{Name: "a", Type: "int"}, {Name: "data", Type: "mediumblob", Nullable: true, Default: ValueDefault("")}},
			wantErr: true,
		},
		{
			name:   "blob with null default",
			fields: []*MySQLField{{Name: "a", Type: "int"}, {Name: "data", Type: "blob", Nullable: true, Default: NullDefault()}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := normalizedTable(tt.fields, tt.indexes)
			err := tbl.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("Validate() error %v is not ErrInvalidInput", err)
			}
		})
	}
}

func TestMySQLLOBNullDefaultIsDropped(t *testing.T) {
	tbl := normalizedTable([]*MySQLField{
		{Name: "id", Type: "int"},
		{Name: "data", Type: "blob", Nullable: true, Default: NullDefault()},
	}, nil)
	if !tbl.Field("data").Default.IsNone() {
		t.Errorf("data default = %v, want none", tbl.Field("data").Default)
	}
	if got, want := tbl.Field("data").SQL(), "`data` blob"; got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}
}

func TestMySQLViewCreateSQL(t *testing.T) {
	v := &MySQLView{Name: "v", Algorithm: "MERGE", Body: " select 1 AS `one` "}
	v.Normalize()
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := "CREATE ALGORITHM=MERGE DEFINER=`root`@`localhost` SQL SECURITY DEFINER VIEW `v` AS select 1 AS `one`"
	if got := v.CreateSQL("root@localhost"); got != want {
		t.Errorf("CreateSQL() = %q, want %q", got, want)
	}
	want = "CREATE ALGORITHM=MERGE SQL SECURITY DEFINER VIEW `v` AS select 1 AS `one`"
	if got := v.CreateSQL(""); got != want {
		t.Errorf("CreateSQL(\"\") = %q, want %q", got, want)
	}

	bad := &MySQLView{Name: "v", Algorithm: "fast", Body: "select 1"}
	bad.Normalize()
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted unknown algorithm")
	}
}
