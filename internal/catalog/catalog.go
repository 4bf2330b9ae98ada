// Package catalog maintains the whitelist of tables, columns, and
// relationships eligible for reporting. Nothing the engine compiles or
// executes may reference a name that does not resolve here.
package catalog

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kyleking/report-engine/internal/cache"
)

// Catalog is the read interface used by the validator and compiler
type Catalog interface {
	Get(name string) (*Table, bool)
	HasTable(name string) bool
	Columns(name string) []Column
	Relationships(name string) []Relationship
	Tables() []Table
	IsColumnAllowed(table, dottedName string) bool
}

// Registry implements Catalog with TTL-cached derivatives. Reads may run
// concurrently; registration invalidates every cached derivative of the
// affected table before returning, so a completed Register is never
// followed by a stale read.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
	cache  *cache.MemoryCache
}

// NewRegistry creates an empty registry with the given derivative cache TTL
func NewRegistry(cacheTTL time.Duration) *Registry {
	return &Registry{
		tables: make(map[string]*Table),
		cache:  cache.NewMemoryCache(cacheTTL, cacheTTL),
	}
}

// Register adds or replaces a table definition. Cached derivatives keyed
// by the table name are invalidated before the write lock is released.
func (r *Registry) Register(table Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := table
	copied.Columns = append([]Column(nil), table.Columns...)
	copied.Relationships = append([]Relationship(nil), table.Relationships...)

	r.tables[table.Name] = &copied

	r.cache.DeletePrefix("columns:" + table.Name)
	r.cache.DeletePrefix("relationships:" + table.Name)
}

// Get returns the table definition, or false when it was never registered
func (r *Registry) Get(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[name]

	return table, ok
}

// HasTable reports whether a table is registered
func (r *Registry) HasTable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tables[name]

	return ok
}

// Tables returns all registered tables sorted by name
func (r *Registry) Tables() []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables := make([]Table, 0, len(r.tables))
	for _, table := range r.tables {
		tables = append(tables, *table)
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	return tables
}

// Columns returns the visible columns of a table plus, for each auto
// relationship, the visible columns of the related table prefixed with
// the relationship name (e.g. "customer.name"). Results are cached.
func (r *Registry) Columns(name string) []Column {
	if cached, ok := r.cache.Get("columns:" + name); ok {
		return cached.([]Column)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[name]
	if !ok {
		return nil
	}

	columns := table.VisibleColumns()

	for _, rel := range table.Relationships {
		if rel.Mode != JoinAuto {
			continue
		}

		related, ok := r.tables[rel.Table]
		if !ok {
			continue
		}

		for _, col := range related.VisibleColumns() {
			columns = append(columns, Column{
				Name:  rel.Name + "." + col.Name,
				Label: rel.Label + " " + col.Label,
				Type:  col.Type,
			})
		}
	}

	r.cache.Set("columns:"+name, columns, 0)

	return columns
}

// Relationships returns the relationships declared on a table
func (r *Registry) Relationships(name string) []Relationship {
	if cached, ok := r.cache.Get("relationships:" + name); ok {
		return cached.([]Relationship)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[name]
	if !ok {
		return nil
	}

	rels := append([]Relationship(nil), table.Relationships...)

	r.cache.Set("relationships:"+name, rels, 0)

	return rels
}

// IsColumnAllowed reports whether a dotted column name is selectable on
// the given table: either a direct visible column, or "rel.col" where
// rel is an auto relationship exposing a visible col.
func (r *Registry) IsColumnAllowed(tableName, dottedName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[tableName]
	if !ok {
		return false
	}

	relName, colName, dotted := strings.Cut(dottedName, ".")
	if !dotted {
		col, ok := table.Column(dottedName)

		return ok && !col.Hidden
	}

	rel, ok := table.Relationship(relName)
	if !ok || rel.Mode != JoinAuto {
		return false
	}

	related, ok := r.tables[rel.Table]
	if !ok {
		return false
	}

	col, ok := related.Column(colName)

	return ok && !col.Hidden
}

// Close releases the derivative cache
func (r *Registry) Close() error {
	return r.cache.Close()
}
