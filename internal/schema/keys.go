package schema

import (
	"fmt"

	apperrors "github.com/koba/schema-sync/internal/errors"
)

type fieldInfo struct {
	name          string
	autoIncrement bool
}

type indexInfo struct {
	name   string
	fields []string
}

// validateKeys enforces the rules both dialects share: unique field and
// index names, index members that exist, and a single auto-increment
// field that is the only member of PRIMARY.
func validateKeys(table string, fields []fieldInfo, indexes []indexInfo) error {
	seen := make(map[string]bool, len(fields))
	var autoIncrement string
	for _, f := range fields {
		if f.name == "" {
			return apperrors.NewValidation(table, "", "field name is empty")
		}
		if seen[f.name] {
			return apperrors.NewValidation(table, f.name, "duplicate field")
		}
		seen[f.name] = true
		if f.autoIncrement {
			if autoIncrement != "" {
				return apperrors.NewValidation(table, f.name, fmt.Sprintf("second auto increment field (first is %s)", autoIncrement))
			}
			autoIncrement = f.name
		}
	}

	names := make(map[string]bool, len(indexes))
	var primary []string
	for _, idx := range indexes {
		if idx.name == "" {
			return apperrors.NewValidation(table, "", "index name is empty")
		}
		if names[idx.name] {
			return apperrors.NewValidation(table, idx.name, "duplicate index")
		}
		names[idx.name] = true
		if len(idx.fields) == 0 {
			return apperrors.NewValidation(table, idx.name, "index has no fields")
		}
		for _, member := range idx.fields {
			if !seen[IndexMemberColumn(member)] {
				return apperrors.NewValidation(table, idx.name, fmt.Sprintf("index refers to unknown field %s", member))
			}
		}
		if idx.name == PrimaryKey {
			primary = idx.fields
		}
	}

	if autoIncrement != "" && (len(primary) != 1 || primary[0] != autoIncrement) {
		return apperrors.NewValidation(table, autoIncrement, "auto increment field must be the only member of PRIMARY")
	}
	return nil
}
