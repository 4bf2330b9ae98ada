package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kyleking/report-engine/internal/errors"
)

// schemaFile is the on-disk shape of a catalog definition file
type schemaFile struct {
	Tables []Table `json:"tables"`
}

// LoadFile reads table definitions from a JSON schema file and registers
// each of them. Registration is explicit and typed; there is no runtime
// reflection over application models.
func LoadFile(registry *Registry, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrTypeConfig, "failed to read schema file %s", path)
	}

	return LoadBytes(registry, data)
}

// LoadBytes registers table definitions from raw JSON
func LoadBytes(registry *Registry, data []byte) (int, error) {
	var file schemaFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, errors.Wrap(err, errors.ErrTypeConfig, "failed to parse schema file")
	}

	for i, table := range file.Tables {
		if err := validateDefinition(table); err != nil {
			return 0, errors.Wrapf(err, errors.ErrTypeCatalog,
				"invalid table definition at index %d", i)
		}
	}

	for _, table := range file.Tables {
		registry.Register(table)
	}

	return len(file.Tables), nil
}

// validateDefinition checks a table definition for internal consistency
func validateDefinition(table Table) error {
	if table.Name == "" {
		return fmt.Errorf("table name is required")
	}

	if len(table.Columns) == 0 {
		return fmt.Errorf("table %q declares no columns", table.Name)
	}

	seen := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		if col.Name == "" {
			return fmt.Errorf("table %q has a column without a name", table.Name)
		}

		if seen[col.Name] {
			return fmt.Errorf("table %q declares column %q twice", table.Name, col.Name)
		}

		seen[col.Name] = true

		if col.Type != "" && !validColumnType(col.Type) {
			return fmt.Errorf("table %q column %q has unknown type %q",
				table.Name, col.Name, col.Type)
		}
	}

	for _, rel := range table.Relationships {
		if rel.Name == "" || rel.Table == "" {
			return fmt.Errorf("table %q has a relationship missing name or target", table.Name)
		}

		if rel.LocalKey == "" || rel.ForeignKey == "" {
			return fmt.Errorf("table %q relationship %q is missing join keys",
				table.Name, rel.Name)
		}

		switch rel.JoinType {
		case JoinLeft, JoinRight, JoinInner:
		default:
			return fmt.Errorf("table %q relationship %q has invalid join type %q",
				table.Name, rel.Name, rel.JoinType)
		}

		switch rel.Mode {
		case JoinAuto, JoinManual:
		default:
			return fmt.Errorf("table %q relationship %q has invalid join mode %q",
				table.Name, rel.Name, rel.Mode)
		}
	}

	if table.MaxRows < 0 {
		return fmt.Errorf("table %q has negative max_rows", table.Name)
	}

	return nil
}

func validColumnType(t ColumnType) bool {
	switch t {
	case TypeString, TypeNumber, TypeDecimal, TypeDate, TypeDateTime,
		TypeBoolean, TypeCurrency, TypePercentage, TypeJSON:
		return true
	}

	return false
}
