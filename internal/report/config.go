// Package report defines the wire shapes of a report query
// configuration and the typed condition tree. JSON is decoded into
// these types exactly once at the boundary; validation and compilation
// never see raw maps.
package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// TableRef names the base table of a query
type TableRef struct {
	Name string `json:"name"`
}

// SelectedColumn is one entry of the select list. Name may be dotted
// ("relationship.column"); Alias and Type are optional.
type SelectedColumn struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Join declares a manual join against a relationship of the base table
type Join struct {
	Name            string           `json:"name,omitempty"`
	Table           string           `json:"table"`
	Type            string           `json:"type,omitempty"`
	LocalKey        string           `json:"localKey,omitempty"`
	ForeignKey      string           `json:"foreignKey,omitempty"`
	Alias           string           `json:"alias,omitempty"`
	SelectedColumns []SelectedColumn `json:"selectedColumns,omitempty"`
}

// GroupBy is one grouping entry with an optional aggregate
type GroupBy struct {
	GroupBy     FieldRef  `json:"groupBy"`
	AggregateFn *ValueRef `json:"aggregateFn,omitempty"`
	AggregateBy *FieldRef `json:"aggregateBy,omitempty"`
}

// SortBy is one ordering entry
type SortBy struct {
	Column    FieldRef `json:"column"`
	Direction ValueRef `json:"direction"`
}

// FieldRef wraps a field name the way the wire format nests it
type FieldRef struct {
	Name string `json:"name"`
}

// ValueRef wraps an enumerated value the way the wire format nests it
type ValueRef struct {
	Value string `json:"value"`
}

// QueryConfig is a complete declarative query over a whitelisted table
type QueryConfig struct {
	Table      TableRef         `json:"table"`
	Columns    []SelectedColumn `json:"columns"`
	Joins      []Join           `json:"joins,omitempty"`
	Conditions *Condition       `json:"conditions,omitempty"`
	GroupBy    []GroupBy        `json:"groupBy,omitempty"`
	SortBy     []SortBy         `json:"sortBy,omitempty"`
	Limit      *int             `json:"limit,omitempty"`
	Offset     *int             `json:"offset,omitempty"`
}

// ParseConfig decodes a QueryConfig from JSON, including the condition
// tree, in one pass
func ParseConfig(data []byte) (*QueryConfig, error) {
	var cfg QueryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseConfigFile decodes a QueryConfig from a JSON file
func ParseConfigFile(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return ParseConfig(data)
}
