package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

// Provider yields one desired schema object.
type Provider func() (*schema.Object, error)

// FromDefinition builds the object described by def. dialect applies when
// def does not name one.
func FromDefinition(def schema.Definition, dialect schema.Dialect) Provider {
	return func() (*schema.Object, error) {
		return def.Object(dialect)
	}
}

// FromFile reads a definition file when the provider is called. The format
// follows the extension: .json, .yaml or .yml. A definition without a name
// is named after the file.
func FromFile(path string, dialect schema.Dialect) Provider {
	return func() (*schema.Object, error) {
		def, err := ReadDefinition(path)
		if err != nil {
			return nil, err
		}
		return def.Object(dialect)
	}
}

// ReadDefinition decodes a JSON or YAML definition file.
func ReadDefinition(path string) (schema.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			nf := apperrors.NewNotFound("definition file", path)
			nf.Err = err
			return schema.Definition{}, nf
		}
		return schema.Definition{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var def schema.Definition
	switch ext {
	case ".json":
		def, err = schema.DecodeJSON(data)
	case ".yaml", ".yml":
		def, err = schema.DecodeYAML(data)
	default:
		return schema.Definition{}, apperrors.NewUnsupported("definition format", fmt.Sprintf("%q (%s)", ext, path))
	}
	if err != nil {
		return schema.Definition{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}
