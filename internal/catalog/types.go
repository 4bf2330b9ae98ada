package catalog

// ColumnType represents the semantic type of a reportable column
type ColumnType string

const (
	TypeString     ColumnType = "string"
	TypeNumber     ColumnType = "number"
	TypeDecimal    ColumnType = "decimal"
	TypeDate       ColumnType = "date"
	TypeDateTime   ColumnType = "datetime"
	TypeBoolean    ColumnType = "boolean"
	TypeCurrency   ColumnType = "currency"
	TypePercentage ColumnType = "percentage"
	TypeJSON       ColumnType = "json"
)

// JoinType represents how a relationship is joined
type JoinType string

const (
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinInner JoinType = "inner"
)

// JoinMode controls whether a relationship may be joined implicitly
type JoinMode string

const (
	// JoinAuto relationships are silently joined when a qualified column
	// or condition references them.
	JoinAuto JoinMode = "auto"
	// JoinManual relationships must be explicitly declared in the query
	// configuration's join list.
	JoinManual JoinMode = "manual"
)

// Column describes a single reportable column
type Column struct {
	Name   string     `json:"name"`
	Label  string     `json:"label"`
	Type   ColumnType `json:"type"`
	Hidden bool       `json:"hidden,omitempty"`
}

// Relationship describes a join from one table to another
type Relationship struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Table      string   `json:"table"`
	JoinType   JoinType `json:"join_type"`
	LocalKey   string   `json:"local_key"`
	ForeignKey string   `json:"foreign_key"`
	Mode       JoinMode `json:"mode"`
}

// Table describes a whitelisted reportable table
type Table struct {
	Name               string         `json:"name"`
	Label              string         `json:"label"`
	Description        string         `json:"description,omitempty"`
	Category           string         `json:"category,omitempty"`
	Extension          string         `json:"extension,omitempty"`
	Columns            []Column       `json:"columns"`
	Relationships      []Relationship `json:"relationships,omitempty"`
	SupportsAggregates bool           `json:"supports_aggregates"`
	MaxRows            int            `json:"max_rows,omitempty"`
}

// Column returns the column with the given name, hidden or not
func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}

	return Column{}, false
}

// Relationship returns the relationship with the given name
func (t *Table) Relationship(name string) (Relationship, bool) {
	for _, rel := range t.Relationships {
		if rel.Name == name {
			return rel, true
		}
	}

	return Relationship{}, false
}

// VisibleColumns returns the table's non-hidden columns in declaration order
func (t *Table) VisibleColumns() []Column {
	visible := make([]Column, 0, len(t.Columns))

	for _, col := range t.Columns {
		if !col.Hidden {
			visible = append(visible, col)
		}
	}

	return visible
}
