// Package compile turns a validated query configuration into
// parameterized SQL. Relationship references found anywhere in the
// configuration become joins automatically; every user-supplied value
// travels as a binding, never as SQL text.
package compile

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/kyleking/report-engine/internal/catalog"
	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/report"
)

// ResolvedJoin is one join the compiler decided to emit
type ResolvedJoin struct {
	Relationship string
	Table        string
	Alias        string
	JoinType     catalog.JoinType
	Condition    string
}

// OutputColumn describes one column of the result set. JoinPath names
// the relationship the column was reached through, empty for base-table
// columns.
type OutputColumn struct {
	Name     string             `json:"name"`
	Label    string             `json:"label"`
	Type     catalog.ColumnType `json:"type"`
	JoinPath string             `json:"auto_join_path,omitempty"`
}

// CompiledQuery is the result of compiling one configuration
type CompiledQuery struct {
	SQL         string
	Bindings    []interface{}
	Columns     []OutputColumn
	AliasMap    map[string]string
	AutoJoins   []ResolvedJoin
	ManualJoins []ResolvedJoin
}

// Compiler compiles query configurations against a catalog
type Compiler struct {
	catalog catalog.Catalog
}

// NewCompiler creates a compiler backed by the catalog
func NewCompiler(cat catalog.Catalog) *Compiler {
	return &Compiler{catalog: cat}
}

// Compile resolves joins, builds the select list, condition tree,
// grouping, ordering, and pagination, and renders parameterized SQL.
// The configuration is expected to have passed validation; the compiler
// still refuses unknown tables and fields rather than emitting SQL for
// them.
func (c *Compiler) Compile(cfg *report.QueryConfig) (*CompiledQuery, error) {
	if cfg == nil {
		return nil, enginerrors.New(enginerrors.ErrTypeValidation, "query configuration is required")
	}

	table, ok := c.catalog.Get(cfg.Table.Name)
	if !ok {
		return nil, enginerrors.NewTableNotFound(cfg.Table.Name)
	}

	plan := &queryPlan{
		compiler: c,
		cfg:      cfg,
		table:    table,
		aliases:  map[string]string{"": table.Name},
	}

	if err := plan.resolveJoins(); err != nil {
		return nil, err
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)

	selects, columns, err := plan.selectList()
	if err != nil {
		return nil, err
	}

	query := builder.Select(selects...).From(table.Name)

	for _, join := range plan.orderedJoins() {
		clause := fmt.Sprintf("%s AS %s ON %s", join.Table, join.Alias, join.Condition)

		switch join.JoinType {
		case catalog.JoinRight:
			query = query.RightJoin(clause)
		case catalog.JoinInner:
			query = query.InnerJoin(clause)
		default:
			query = query.LeftJoin(clause)
		}
	}

	if cfg.Conditions != nil {
		predicate, err := plan.buildCondition(cfg.Conditions)
		if err != nil {
			return nil, err
		}

		query = query.Where(predicate)
	}

	for _, group := range cfg.GroupBy {
		qualified, err := plan.qualify(group.GroupBy.Name)
		if err != nil {
			return nil, err
		}

		query = query.GroupBy(qualified)
	}

	for _, sort := range cfg.SortBy {
		qualified, err := plan.qualify(sort.Column.Name)
		if err != nil {
			return nil, err
		}

		direction := "ASC"
		if strings.EqualFold(sort.Direction.Value, "desc") {
			direction = "DESC"
		}

		query = query.OrderBy(qualified + " " + direction)
	}

	if cfg.Limit != nil && *cfg.Limit > 0 {
		query = query.Limit(uint64(*cfg.Limit))
	}

	if cfg.Offset != nil && *cfg.Offset > 0 {
		query = query.Offset(uint64(*cfg.Offset))
	}

	rendered, bindings, err := query.ToSql()
	if err != nil {
		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeInternal, "failed to render SQL")
	}

	return &CompiledQuery{
		SQL:         rendered,
		Bindings:    bindings,
		Columns:     columns,
		AliasMap:    plan.aliases,
		AutoJoins:   plan.autoJoins,
		ManualJoins: plan.manualJoins,
	}, nil
}

// queryPlan accumulates per-compilation state
type queryPlan struct {
	compiler    *Compiler
	cfg         *report.QueryConfig
	table       *catalog.Table
	aliases     map[string]string
	autoJoins   []ResolvedJoin
	manualJoins []ResolvedJoin
}

// AutoJoinAlias derives the deterministic alias for an automatic join
func AutoJoinAlias(baseTable, relationship string) string {
	return baseTable + "_" + relationship
}

// resolveJoins collects automatic joins from every relationship
// reference in the configuration, then layers the manually declared
// joins on top, rejecting alias collisions. A relationship declared in
// the join list is never also auto-joined: one path yields exactly one
// join clause and one alias, with the declared join winning.
func (p *queryPlan) resolveJoins() error {
	declared := make(map[string]bool, len(p.cfg.Joins))

	for _, join := range p.cfg.Joins {
		if rel, ok := p.findRelationship(join); ok {
			declared[rel.Name] = true
		}
	}

	for _, relName := range p.referencedRelationships() {
		if declared[relName] {
			continue
		}

		rel, ok := p.table.Relationship(relName)
		if !ok || rel.Mode != catalog.JoinAuto {
			continue
		}

		target, ok := p.compiler.catalog.Get(rel.Table)
		if !ok {
			return enginerrors.Newf(enginerrors.ErrTypeCatalog,
				"relationship %q targets unregistered table %q", rel.Name, rel.Table)
		}

		alias := AutoJoinAlias(p.table.Name, rel.Name)
		p.aliases[rel.Name] = alias
		p.autoJoins = append(p.autoJoins, ResolvedJoin{
			Relationship: rel.Name,
			Table:        target.Name,
			Alias:        alias,
			JoinType:     rel.JoinType,
			Condition: fmt.Sprintf("%s.%s = %s.%s",
				p.table.Name, rel.LocalKey, alias, rel.ForeignKey),
		})
	}

	taken := map[string]bool{p.table.Name: true}
	for _, join := range p.autoJoins {
		taken[join.Alias] = true
	}

	for _, join := range p.cfg.Joins {
		rel, ok := p.findRelationship(join)
		if !ok {
			return enginerrors.Newf(enginerrors.ErrTypeValidation,
				"join %q does not match any relationship on table %q",
				joinLabel(join), p.table.Name)
		}

		target, ok := p.compiler.catalog.Get(rel.Table)
		if !ok {
			return enginerrors.Newf(enginerrors.ErrTypeCatalog,
				"join %q targets unregistered table %q", joinLabel(join), rel.Table)
		}

		alias := join.Alias
		if alias == "" {
			alias = target.Name
		}

		if taken[alias] {
			return enginerrors.Newf(enginerrors.ErrTypeValidation,
				"join alias %q collides with another table in the query", alias)
		}

		taken[alias] = true
		p.aliases[rel.Name] = alias

		localKey := join.LocalKey
		if localKey == "" {
			localKey = rel.LocalKey
		}

		foreignKey := join.ForeignKey
		if foreignKey == "" {
			foreignKey = rel.ForeignKey
		}

		joinType := rel.JoinType
		if join.Type != "" {
			joinType = catalog.JoinType(strings.ToLower(join.Type))
		}

		p.manualJoins = append(p.manualJoins, ResolvedJoin{
			Relationship: rel.Name,
			Table:        target.Name,
			Alias:        alias,
			JoinType:     joinType,
			Condition: fmt.Sprintf("%s.%s = %s.%s",
				p.table.Name, localKey, alias, foreignKey),
		})
	}

	return nil
}

// referencedRelationships returns relationship names referenced by any
// dotted field, in first-reference order
func (p *queryPlan) referencedRelationships() []string {
	seen := make(map[string]bool)

	var names []string

	consider := func(field string) {
		relName, _, dotted := strings.Cut(field, ".")
		if !dotted || seen[relName] {
			return
		}

		// A dot can also mean a JSON subfield; only relationship names
		// produce joins.
		if col, ok := p.table.Column(relName); ok && col.Type == catalog.TypeJSON {
			return
		}

		if _, ok := p.table.Relationship(relName); ok {
			seen[relName] = true
			names = append(names, relName)
		}
	}

	for _, col := range p.cfg.Columns {
		consider(col.Name)
	}

	if p.cfg.Conditions != nil {
		for _, leaf := range p.cfg.Conditions.Leaves() {
			consider(leaf.Field)
		}
	}

	for _, group := range p.cfg.GroupBy {
		consider(group.GroupBy.Name)

		if group.AggregateBy != nil {
			consider(group.AggregateBy.Name)
		}
	}

	for _, sort := range p.cfg.SortBy {
		consider(sort.Column.Name)
	}

	return names
}

func (p *queryPlan) findRelationship(join report.Join) (catalog.Relationship, bool) {
	if join.Name != "" {
		if rel, ok := p.table.Relationship(join.Name); ok {
			return rel, true
		}
	}

	for _, rel := range p.table.Relationships {
		if rel.Table == join.Table {
			return rel, true
		}
	}

	return catalog.Relationship{}, false
}

func joinLabel(join report.Join) string {
	if join.Name != "" {
		return join.Name
	}

	return join.Table
}

// orderedJoins returns auto joins first, then manual joins, both in
// resolution order
func (p *queryPlan) orderedJoins() []ResolvedJoin {
	joins := make([]ResolvedJoin, 0, len(p.autoJoins)+len(p.manualJoins))
	joins = append(joins, p.autoJoins...)

	return append(joins, p.manualJoins...)
}

// selectList builds the projection. With grouping, the projection is
// the group-by fields plus the aggregate expressions; without it, the
// configured columns and any nested join columns.
func (p *queryPlan) selectList() ([]string, []OutputColumn, error) {
	if len(p.cfg.GroupBy) > 0 {
		return p.aggregateSelectList()
	}

	var (
		selects []string
		columns []OutputColumn
	)

	for _, col := range p.cfg.Columns {
		expr, err := p.qualify(col.Name)
		if err != nil {
			return nil, nil, err
		}

		name := col.Alias
		if name == "" {
			name = outputName(col.Name)
		}

		selects = append(selects, fmt.Sprintf("%s AS %s", expr, name))
		columns = append(columns, OutputColumn{
			Name:     name,
			Label:    p.labelFor(col),
			Type:     p.typeFor(col.Name, catalog.ColumnType(col.Type)),
			JoinPath: p.joinPathFor(col.Name),
		})
	}

	for _, join := range p.cfg.Joins {
		rel, ok := p.findRelationship(join)
		if !ok {
			continue
		}

		alias := p.aliases[rel.Name]

		for _, col := range join.SelectedColumns {
			name := col.Alias
			if name == "" {
				name = alias + "_" + col.Name
			}

			selects = append(selects, fmt.Sprintf("%s.%s AS %s", alias, col.Name, name))
			columns = append(columns, OutputColumn{
				Name:     name,
				Label:    name,
				Type:     p.relatedType(rel.Table, col.Name, catalog.ColumnType(col.Type)),
				JoinPath: rel.Name,
			})
		}
	}

	return selects, columns, nil
}

// aggregateSelectList builds the projection for grouped queries
func (p *queryPlan) aggregateSelectList() ([]string, []OutputColumn, error) {
	var (
		selects []string
		columns []OutputColumn
	)

	for _, group := range p.cfg.GroupBy {
		qualified, err := p.qualify(group.GroupBy.Name)
		if err != nil {
			return nil, nil, err
		}

		name := outputName(group.GroupBy.Name)
		selects = append(selects, fmt.Sprintf("%s AS %s", qualified, name))
		columns = append(columns, OutputColumn{
			Name:     name,
			Label:    name,
			Type:     p.typeFor(group.GroupBy.Name, ""),
			JoinPath: p.joinPathFor(group.GroupBy.Name),
		})
	}

	for _, group := range p.cfg.GroupBy {
		if group.AggregateFn == nil || group.AggregateFn.Value == "" {
			continue
		}

		fn := strings.ToUpper(group.AggregateFn.Value)

		target := "*"
		name := strings.ToLower(fn) + "_all"

		if group.AggregateBy != nil && group.AggregateBy.Name != "*" {
			qualified, err := p.qualify(group.AggregateBy.Name)
			if err != nil {
				return nil, nil, err
			}

			target = qualified
			name = strings.ToLower(fn) + "_" + outputName(group.AggregateBy.Name)
		}

		selects = append(selects, fmt.Sprintf("%s(%s) AS %s", fn, target, name))
		columns = append(columns, OutputColumn{
			Name:  name,
			Label: name,
			Type:  catalog.TypeNumber,
		})
	}

	return selects, columns, nil
}

// qualify turns a configuration field reference into a SQL expression:
// a base column, a joined column through its alias, or a JSON subfield
// extraction
func (p *queryPlan) qualify(field string) (string, error) {
	relName, colName, dotted := strings.Cut(field, ".")
	if !dotted {
		if _, ok := p.table.Column(field); !ok {
			return "", enginerrors.Newf(enginerrors.ErrTypeValidation,
				"column %q does not exist on table %q", field, p.table.Name)
		}

		return p.table.Name + "." + field, nil
	}

	if col, ok := p.table.Column(relName); ok && col.Type == catalog.TypeJSON {
		return fmt.Sprintf("json_extract_string(%s.%s, '$.%s')",
			p.table.Name, relName, colName), nil
	}

	alias, ok := p.aliases[relName]
	if !ok {
		return "", enginerrors.Newf(enginerrors.ErrTypeValidation,
			"field %q references relationship %q which is not joined", field, relName)
	}

	return alias + "." + colName, nil
}

func (p *queryPlan) labelFor(col report.SelectedColumn) string {
	relName, colName, dotted := strings.Cut(col.Name, ".")
	if !dotted {
		if c, ok := p.table.Column(col.Name); ok && c.Label != "" {
			return c.Label
		}

		return col.Name
	}

	if rel, ok := p.table.Relationship(relName); ok {
		return p.relatedLabel(rel.Table, colName)
	}

	return col.Name
}

func (p *queryPlan) relatedLabel(tableName, colName string) string {
	if related, ok := p.compiler.catalog.Get(tableName); ok {
		if c, ok := related.Column(colName); ok && c.Label != "" {
			return c.Label
		}
	}

	return colName
}

// typeFor resolves the catalog type of a field, honoring an explicit
// override from the configuration
func (p *queryPlan) typeFor(field string, override catalog.ColumnType) catalog.ColumnType {
	if override != "" {
		return override
	}

	relName, colName, dotted := strings.Cut(field, ".")
	if !dotted {
		if col, ok := p.table.Column(field); ok {
			return col.Type
		}

		return catalog.TypeString
	}

	if col, ok := p.table.Column(relName); ok && col.Type == catalog.TypeJSON {
		return catalog.TypeString
	}

	if rel, ok := p.table.Relationship(relName); ok {
		return p.relatedType(rel.Table, colName, "")
	}

	return catalog.TypeString
}

func (p *queryPlan) relatedType(tableName, colName string, override catalog.ColumnType) catalog.ColumnType {
	if override != "" {
		return override
	}

	if related, ok := p.compiler.catalog.Get(tableName); ok {
		if col, ok := related.Column(colName); ok {
			return col.Type
		}
	}

	return catalog.TypeString
}

// joinPathFor returns the relationship name a dotted field resolves
// through, or empty for base columns and JSON subfields
func (p *queryPlan) joinPathFor(field string) string {
	relName, _, dotted := strings.Cut(field, ".")
	if !dotted {
		return ""
	}

	if col, ok := p.table.Column(relName); ok && col.Type == catalog.TypeJSON {
		return ""
	}

	if _, ok := p.table.Relationship(relName); ok {
		return relName
	}

	return ""
}

// outputName flattens a dotted reference into a legal column name
func outputName(field string) string {
	return strings.ReplaceAll(field, ".", "_")
}
