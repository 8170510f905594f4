package schema

import (
	"reflect"
	"strings"
	"testing"
)

func tableWithAll() Definition {
	return Definition{
		Type:    KindTable,
		Dialect: MySQL,
		Name:    "table_with_all",
		Status: &StatusDefinition{
			Engine:  "innodb",
			Charset: "utf8mb3",
			Collate: "utf8_general_ci",
			Comment: "all field kinds",
		},
		Fields: FieldDefinitions{
			{Name: "id", Type: "int", Attr: "10", Unsigned: true, AutoIncrement: true},
			{Name: "varchar", Type: "varchar", Attr: "200", Comment: "varchar field"},
			{Name: "text", Type: "text", Charset: "utf8mb4", Collate: "utf8mb4_general_ci", Nullable: true},
			{Name: "decimal", Type: "decimal", Attr: "20,2", Default: ValueDefault("0.00")},
			{Name: "enum", Type: "enum", Attr: "'Smail','Medium','Large'", Nullable: true, Default: NullDefault()},
		},
		Indexes: IndexDefinitions{
			{Name: "PRIMARY", Fields: []string{"id"}},
			{Name: "uniqueindex", Fields: []string{"varchar"}, Unique: true},
			{Name: "intfield", Fields: []string{"decimal"}},
			{Name: "mixfield", Fields: []string{"varchar(10)", "decimal"}, Comment: "prefix"},
		},
		InitTableSQL: "INSERT INTO `table_with_all` (`varchar`) VALUES ('seed')",
	}
}

func TestDefinitionJSONRoundTrip(t *testing.T) {
	def := tableWithAll()
	data, err := EncodeJSON(def)
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	got, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if !reflect.DeepEqual(got, def) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, def)
	}

	// Declaration order must survive the map encoding.
	s := string(data)
	if !(strings.Index(s, `"id"`) < strings.Index(s, `"varchar"`) && strings.Index(s, `"varchar"`) < strings.Index(s, `"enum"`)) {
		t.Errorf("field order lost:\n%s", s)
	}
}

func TestDefinitionYAMLRoundTrip(t *testing.T) {
	def := tableWithAll()
	data, err := EncodeYAML(def)
	if err != nil {
		t.Fatalf("EncodeYAML() error = %v", err)
	}
	got, err := DecodeYAML(data)
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	if !reflect.DeepEqual(got, def) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v\nyaml:\n%s", got, def, data)
	}
}

func TestDefinitionDefaultStates(t *testing.T) {
	input := `{
		"type": "table",
		"field": {
			"a": {"type": "int", "nullable": true},
			"b": {"type": "int", "nullable": true, "default": null},
			"c": {"type": "int", "default": "5"},
			"d": {"type": "int", "default": 7, "attr": 3}
		}
	}`
	def, err := DecodeJSON([]byte(input))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if len(def.Fields) != 4 {
		t.Fatalf("got %d fields, want 4", len(def.Fields))
	}
	if !def.Fields[0].Default.IsNone() {
		t.Errorf("a default = %v, want none", def.Fields[0].Default)
	}
	if !def.Fields[1].Default.IsNull() {
		t.Errorf("b default = %v, want NULL", def.Fields[1].Default)
	}
	if v, ok := def.Fields[2].Default.Value(); !ok || v != "5" {
		t.Errorf("c default = %v, want '5'", def.Fields[2].Default)
	}
	if v, ok := def.Fields[3].Default.Value(); !ok || v != "7" {
		t.Errorf("d default = %v, want '7'", def.Fields[3].Default)
	}
	if def.Fields[3].Attr != "3" {
		t.Errorf("d attr = %q, want 3", def.Fields[3].Attr)
	}

	yamlInput := "type: table\nfield:\n  a:\n    type: int\n  b:\n    type: int\n    default: ~\n  c:\n    type: int\n    default: 0\n"
	def, err = DecodeYAML([]byte(yamlInput))
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	if !def.Fields[0].Default.IsNone() || !def.Fields[1].Default.IsNull() {
		t.Errorf("yaml defaults = %v, %v", def.Fields[0].Default, def.Fields[1].Default)
	}
	if v, ok := def.Fields[2].Default.Value(); !ok || v != "0" {
		t.Errorf("yaml c default = %v, want '0'", def.Fields[2].Default)
	}
}

func TestDefinitionDuplicateKey(t *testing.T) {
	input := `{"type":"table","field":{"a":{"type":"int"},"a":{"type":"text"}}}`
	if _, err := DecodeJSON([]byte(input)); err == nil {
		t.Error("DecodeJSON() accepted a duplicate field")
	}
}

func TestDefinitionObjectRoundTrip(t *testing.T) {
	def := tableWithAll()
	obj, err := def.Object(0)
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	back := obj.Definition()
	again, err := back.Object(0)
	if err != nil {
		t.Fatalf("Object() on converted definition error = %v", err)
	}
	if got, want := again.MySQLTable.CreateSQL(), obj.MySQLTable.CreateSQL(); got != want {
		t.Errorf("CreateSQL changed across conversion:\n%s\n%s", got, want)
	}
	if back.Fields[1].Charset != "utf8mb3" {
		t.Errorf("varchar charset = %q, want inherited utf8mb3", back.Fields[1].Charset)
	}
}

func TestDefinitionObjectErrors(t *testing.T) {
	def := tableWithAll()
	if _, err := def.Object(SQLite); err == nil {
		t.Error("Object(SQLite) accepted a mysql definition")
	}

	view := Definition{Type: KindView, Name: "v", SQL: "select 1"}
	if _, err := view.Object(SQLite); err == nil {
		t.Error("Object(SQLite) accepted a view")
	}
	obj, err := view.Object(MySQL)
	if err != nil {
		t.Fatalf("Object(MySQL) view error = %v", err)
	}
	if obj.MySQLView.Algorithm != "undefined" || obj.MySQLView.Security != "definer" {
		t.Errorf("view defaults = %q/%q", obj.MySQLView.Algorithm, obj.MySQLView.Security)
	}
}

func TestSQLiteDefinitionRoundTrip(t *testing.T) {
	rowid := false
	def := Definition{
		Type:    KindTable,
		Dialect: SQLite,
		Name:    "pairs",
		Status:  &StatusDefinition{Comment: "pairs", RowID: &rowid},
		Fields: FieldDefinitions{
			{Name: "a", Type: "integer"},
			{Name: "b", Type: "text", Collate: "nocase", Comment: "label"},
		},
		Indexes: IndexDefinitions{{Name: "PRIMARY", Fields: []string{"a", "b"}}},
	}
	obj, err := def.Object(SQLite)
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	if !obj.SQLiteTable.Status.WithoutRowID {
		t.Error("rowid: false did not select WITHOUT ROWID")
	}
	if got := obj.Definition(); !reflect.DeepEqual(got, def) {
		t.Errorf("Definition() = %+v, want %+v", got, def)
	}
}
