package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	apperrors "github.com/koba/schema-sync/internal/errors"
)

// Definition is the portable form of a schema object. It is what schema
// files and snapshots contain.
type Definition struct {
	Type         Kind              `json:"type" yaml:"type"`
	Dialect      Dialect           `json:"dialect,omitzero" yaml:"dialect,omitempty"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	Status       *StatusDefinition `json:"status,omitempty" yaml:"status,omitempty"`
	Fields       FieldDefinitions  `json:"field,omitempty" yaml:"field,omitempty"`
	Indexes      IndexDefinitions  `json:"index,omitempty" yaml:"index,omitempty"`
	InitTableSQL string            `json:"initTableSql,omitempty" yaml:"initTableSql,omitempty"`
	Algorithm    string            `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Security     string            `json:"security,omitempty" yaml:"security,omitempty"`
	SQL          string            `json:"sql,omitempty" yaml:"sql,omitempty"`
}

// StatusDefinition holds table options. RowID only applies to SQLite and
// defaults to true.
type StatusDefinition struct {
	Engine    string `json:"engine,omitempty" yaml:"engine,omitempty"`
	Charset   string `json:"charset,omitempty" yaml:"charset,omitempty"`
	Collate   string `json:"collate,omitempty" yaml:"collate,omitempty"`
	Comment   string `json:"comment,omitempty" yaml:"comment,omitempty"`
	Checksum  string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	RowFormat string `json:"rowFormat,omitempty" yaml:"rowFormat,omitempty"`
	RowID     *bool  `json:"rowid,omitempty" yaml:"rowid,omitempty"`
}

// Attr is a type length or precision such as "200" or "20,2". JSON input
// may give it as a number.
type Attr string

// UnmarshalJSON accepts a string or a number.
func (a *Attr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Attr(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("attr must be a string or number: %w", err)
	}
	*a = Attr(n.String())
	return nil
}

// FieldDefinition is one column. Name is carried by the enclosing map key.
type FieldDefinition struct {
	Name          string  `json:"-" yaml:"-"`
	Type          string  `json:"type" yaml:"type"`
	Attr          Attr    `json:"attr,omitempty" yaml:"attr,omitempty"`
	Unsigned      bool    `json:"unsigned,omitempty" yaml:"unsigned,omitempty"`
	Zerofill      bool    `json:"zerofill,omitempty" yaml:"zerofill,omitempty"`
	Nullable      bool    `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	AutoIncrement bool    `json:"autoIncrement,omitempty" yaml:"autoIncrement,omitempty"`
	Default       Default `json:"default,omitzero" yaml:"default,omitempty"`
	Comment       string  `json:"comment,omitempty" yaml:"comment,omitempty"`
	Charset       string  `json:"charset,omitempty" yaml:"charset,omitempty"`
	Collate       string  `json:"collate,omitempty" yaml:"collate,omitempty"`
}

// UnmarshalYAML decodes the field and keeps an explicit "default: null",
// which yaml.v3 would otherwise treat like an absent key.
func (f *FieldDefinition) UnmarshalYAML(node *yaml.Node) error {
	type plain FieldDefinition
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FieldDefinition(p)
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "default" && node.Content[i+1].ShortTag() == "!!null" {
				f.Default = NullDefault()
			}
		}
	}
	return nil
}

// IndexDefinition is one index. Name is carried by the enclosing map key.
type IndexDefinition struct {
	Name     string   `json:"-" yaml:"-"`
	Fields   []string `json:"fields" yaml:"fields"`
	Unique   bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Fulltext bool     `json:"fulltext,omitempty" yaml:"fulltext,omitempty"`
	Comment  string   `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// FieldDefinitions is a name-keyed map that keeps declaration order.
type FieldDefinitions []FieldDefinition

// IndexDefinitions is a name-keyed map that keeps declaration order.
type IndexDefinitions []IndexDefinition

func (fs FieldDefinitions) MarshalJSON() ([]byte, error) {
	return marshalOrderedJSON(len(fs), func(i int) (string, any) { return fs[i].Name, fs[i] })
}

func (fs *FieldDefinitions) UnmarshalJSON(data []byte) error {
	var out FieldDefinitions
	err := unmarshalOrderedJSON(data, func(key string, dec *json.Decoder) error {
		var f FieldDefinition
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		f.Name = key
		out = append(out, f)
		return nil
	})
	*fs = out
	return err
}

func (fs FieldDefinitions) MarshalYAML() (any, error) {
	return marshalOrderedYAML(len(fs), func(i int) (string, any) { return fs[i].Name, fs[i] })
}

func (fs *FieldDefinitions) UnmarshalYAML(node *yaml.Node) error {
	var out FieldDefinitions
	err := unmarshalOrderedYAML(node, func(key string, value *yaml.Node) error {
		var f FieldDefinition
		if err := value.Decode(&f); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		f.Name = key
		out = append(out, f)
		return nil
	})
	*fs = out
	return err
}

func (is IndexDefinitions) MarshalJSON() ([]byte, error) {
	return marshalOrderedJSON(len(is), func(i int) (string, any) { return is[i].Name, is[i] })
}

func (is *IndexDefinitions) UnmarshalJSON(data []byte) error {
	var out IndexDefinitions
	err := unmarshalOrderedJSON(data, func(key string, dec *json.Decoder) error {
		var idx IndexDefinition
		if err := dec.Decode(&idx); err != nil {
			return fmt.Errorf("index %s: %w", key, err)
		}
		idx.Name = key
		out = append(out, idx)
		return nil
	})
	*is = out
	return err
}

func (is IndexDefinitions) MarshalYAML() (any, error) {
	return marshalOrderedYAML(len(is), func(i int) (string, any) { return is[i].Name, is[i] })
}

func (is *IndexDefinitions) UnmarshalYAML(node *yaml.Node) error {
	var out IndexDefinitions
	err := unmarshalOrderedYAML(node, func(key string, value *yaml.Node) error {
		var idx IndexDefinition
		if err := value.Decode(&idx); err != nil {
			return fmt.Errorf("index %s: %w", key, err)
		}
		idx.Name = key
		out = append(out, idx)
		return nil
	})
	*is = out
	return err
}

func marshalOrderedJSON(n int, entry func(int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, value := entry(i)
		buf.WriteString(strconv.Quote(key))
		buf.WriteByte(':')
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unmarshalOrderedJSON(data []byte, entry func(string, *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
		if err := entry(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func marshalOrderedYAML(n int, entry func(int) (string, any)) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i < n; i++ {
		key, value := entry(i)
		var v yaml.Node
		if err := v.Encode(value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, &v)
	}
	return node, nil
}

func unmarshalOrderedYAML(node *yaml.Node, entry func(string, *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at line %d", node.Line)
	}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return fmt.Errorf("duplicate key %q at line %d", key, node.Content[i].Line)
		}
		seen[key] = true
		if err := entry(key, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeJSON parses a JSON definition.
func DecodeJSON(data []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, &apperrors.ParseError{Statement: "json definition", Err: err}
	}
	return def, nil
}

// EncodeJSON renders def as indented JSON.
func EncodeJSON(def Definition) ([]byte, error) {
	return json.MarshalIndent(def, "", "  ")
}

// DecodeYAML parses a YAML definition.
func DecodeYAML(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, &apperrors.ParseError{Statement: "yaml definition", Err: err}
	}
	return def, nil
}

// EncodeYAML renders def as YAML.
func EncodeYAML(def Definition) ([]byte, error) {
	return yaml.Marshal(def)
}

// Object builds, normalizes and validates the schema object described by
// the definition. dialect is used when the definition does not name one.
func (d Definition) Object(dialect Dialect) (*Object, error) {
	if d.Dialect != 0 {
		if dialect != 0 && d.Dialect != dialect {
			return nil, apperrors.NewUnsupported("definition", fmt.Sprintf("%s definition %s used with %s", d.Dialect, d.Name, dialect))
		}
		dialect = d.Dialect
	}
	kind := d.Type
	if kind == "" {
		kind = KindTable
	}

	var obj *Object
	switch {
	case dialect == MySQL && kind == KindTable:
		obj = NewMySQLTableObject(d.mysqlTable())
		obj.MySQLTable.Normalize()
	case dialect == MySQL && kind == KindView:
		v := &MySQLView{Name: d.Name, Algorithm: d.Algorithm, Security: d.Security, Body: d.SQL}
		v.Normalize()
		obj = NewMySQLViewObject(v)
	case dialect == SQLite && kind == KindTable:
		obj = NewSQLiteTableObject(d.sqliteTable())
		obj.SQLiteTable.Normalize()
	default:
		return nil, apperrors.NewUnsupported("definition", fmt.Sprintf("%s %s", dialect, kind))
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	return obj, nil
}

func (d Definition) mysqlTable() *MySQLTable {
	t := &MySQLTable{Name: d.Name, InitSQL: d.InitTableSQL}
	if s := d.Status; s != nil {
		t.Status = MySQLStatus{
			Engine:    s.Engine,
			Charset:   s.Charset,
			Collate:   s.Collate,
			Comment:   s.Comment,
			Checksum:  s.Checksum,
			RowFormat: s.RowFormat,
		}
	}
	for _, f := range d.Fields {
		t.Fields = append(t.Fields, &MySQLField{
			Name:          f.Name,
			Type:          f.Type,
			Attr:          string(f.Attr),
			Unsigned:      f.Unsigned,
			Zerofill:      f.Zerofill,
			Nullable:      f.Nullable,
			AutoIncrement: f.AutoIncrement,
			Default:       f.Default,
			Comment:       f.Comment,
			Charset:       f.Charset,
			Collate:       f.Collate,
		})
	}
	for _, i := range d.Indexes {
		t.Indexes = append(t.Indexes, &MySQLIndex{
			Name:     i.Name,
			Fields:   append([]string(nil), i.Fields...),
			Unique:   i.Unique,
			Fulltext: i.Fulltext,
			Comment:  i.Comment,
		})
	}
	return t
}

func (d Definition) sqliteTable() *SQLiteTable {
	t := &SQLiteTable{Name: d.Name, InitSQL: d.InitTableSQL}
	if s := d.Status; s != nil {
		t.Status.Comment = s.Comment
		t.Status.WithoutRowID = s.RowID != nil && !*s.RowID
	}
	for _, f := range d.Fields {
		t.Fields = append(t.Fields, &SQLiteField{
			Name:          f.Name,
			Type:          f.Type,
			Nullable:      f.Nullable,
			AutoIncrement: f.AutoIncrement,
			Default:       f.Default,
			Comment:       f.Comment,
			Collate:       f.Collate,
		})
	}
	for _, i := range d.Indexes {
		t.Indexes = append(t.Indexes, &SQLiteIndex{
			Name:    i.Name,
			Fields:  append([]string(nil), i.Fields...),
			Unique:  i.Unique,
			Comment: i.Comment,
		})
	}
	return t
}

// Definition converts the object back into its portable form.
func (o *Object) Definition() Definition {
	def := Definition{Type: o.Kind, Dialect: o.Dialect, Name: o.Name()}
	switch {
	case o.MySQLTable != nil:
		t := o.MySQLTable
		def.InitTableSQL = t.InitSQL
		def.Status = &StatusDefinition{
			Engine:    t.Status.Engine,
			Charset:   t.Status.Charset,
			Collate:   t.Status.Collate,
			Comment:   t.Status.Comment,
			Checksum:  t.Status.Checksum,
			RowFormat: t.Status.RowFormat,
		}
		for _, f := range t.Fields {
			def.Fields = append(def.Fields, FieldDefinition{
				Name:          f.Name,
				Type:          f.Type,
				Attr:          Attr(f.Attr),
				Unsigned:      f.Unsigned,
				Zerofill:      f.Zerofill,
				Nullable:      f.Nullable,
				AutoIncrement: f.AutoIncrement,
				Default:       f.Default,
				Comment:       f.Comment,
				Charset:       f.Charset,
				Collate:       f.Collate,
			})
		}
		for _, i := range t.Indexes {
			def.Indexes = append(def.Indexes, IndexDefinition{
				Name:     i.Name,
				Fields:   append([]string(nil), i.Fields...),
				Unique:   i.Unique,
				Fulltext: i.Fulltext,
				Comment:  i.Comment,
			})
		}
	case o.MySQLView != nil:
		def.Algorithm = o.MySQLView.Algorithm
		def.Security = o.MySQLView.Security
		def.SQL = o.MySQLView.Body
	case o.SQLiteTable != nil:
		t := o.SQLiteTable
		def.InitTableSQL = t.InitSQL
		if t.Status.Comment != "" || t.Status.WithoutRowID {
			def.Status = &StatusDefinition{Comment: t.Status.Comment}
			if t.Status.WithoutRowID {
				rowid := false
				def.Status.RowID = &rowid
			}
		}
		for _, f := range t.Fields {
			def.Fields = append(def.Fields, FieldDefinition{
				Name:          f.Name,
				Type:          f.Type,
				Nullable:      f.Nullable,
				AutoIncrement: f.AutoIncrement,
				Default:       f.Default,
				Comment:       f.Comment,
				Collate:       f.Collate,
			})
		}
		for _, i := range t.Indexes {
			def.Indexes = append(def.Indexes, IndexDefinition{
				Name:    i.Name,
				Fields:  append([]string(nil), i.Fields...),
				Unique:  i.Unique,
				Comment: i.Comment,
			})
		}
	}
	return def
}
