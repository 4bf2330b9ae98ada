// Package validate checks a whole query configuration against the
// schema catalog: structure, references, security patterns, and
// performance risk. Invalid input is an ordinary result, never an
// error; the validator has no side effects and its output is
// deterministic for identical input.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kyleking/report-engine/internal/catalog"
	"github.com/kyleking/report-engine/internal/report"
)

const (
	// HardRowLimit is the absolute ceiling on requested rows
	HardRowLimit = 50000
	// WarnRowLimit triggers a performance warning
	WarnRowLimit = 10000

	maxAliasLength    = 64
	warnColumnCount   = 50
	warnJoinCount     = 5
	warnLeafCount     = 20
	cartesianJoinRisk = 2
	unindexedRiskMin  = 3

	complexityMediumAt = 10
	complexityHighAt   = 25
)

// Summary condenses the shape of a validated configuration
type Summary struct {
	Complexity           string `json:"complexity"`
	TotalColumns         int    `json:"total_columns"`
	TotalJoins           int    `json:"total_joins"`
	TotalConditions      int    `json:"total_conditions"`
	HasGrouping          bool   `json:"has_grouping"`
	HasSorting           bool   `json:"has_sorting"`
	HasLimit             bool   `json:"has_limit"`
	EstimatedPerformance string `json:"estimated_performance"`
}

// Result is the outcome of validating one configuration
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Summary  Summary  `json:"summary"`
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// injectionPatterns are a defense-in-depth screen over string values in
// the configuration. The primary safety guarantee is parameterized SQL
// construction in the compiler; these regexes only catch obvious abuse
// early enough to report it as a validation error.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`(?i)drop\s+table`),
	regexp.MustCompile(`(?i)insert\s+into`),
	regexp.MustCompile(`(?i)delete\s+from`),
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)information_schema`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*`),
}

// sensitiveSubstrings flag columns that look like they carry secrets
var sensitiveSubstrings = []string{
	"password", "token", "secret", "key", "ssn", "credit_card",
}

var allowedAggregates = map[string]bool{
	"count": true, "sum": true, "avg": true,
	"min": true, "max": true, "group_concat": true,
}

// indexedSuffixes mark condition fields that look index-backed
var indexedSuffixes = []string{"_id", "_uuid", "_at", "_date"}
var indexedNames = map[string]bool{"id": true, "uuid": true, "created_at": true, "updated_at": true}

// Validator validates query configurations against a catalog
type Validator struct {
	catalog catalog.Catalog
}

// NewValidator creates a validator backed by the catalog
func NewValidator(cat catalog.Catalog) *Validator {
	return &Validator{catalog: cat}
}

// Validate runs the full pipeline. Only a structurally broken
// configuration stops early; all other checks run and accumulate.
func (v *Validator) Validate(cfg *report.QueryConfig) Result {
	result := Result{}

	if cfg == nil {
		result.Errors = append(result.Errors, "query configuration is required")
		result.Summary = Summary{Complexity: "low", EstimatedPerformance: "fast"}

		return result
	}

	result.Summary = v.summarize(cfg)

	if errs := v.checkStructure(cfg); len(errs) > 0 {
		result.Errors = errs

		return result
	}

	table, ok := v.catalog.Get(cfg.Table.Name)
	if !ok {
		result.Errors = append(result.Errors,
			fmt.Sprintf("table %q is not available for reporting", cfg.Table.Name))

		return result
	}

	result.Errors = append(result.Errors, v.checkColumns(cfg, table)...)
	result.Warnings = append(result.Warnings, v.warnColumns(cfg)...)

	joinErrs, joinWarns := v.checkJoins(cfg, table)
	result.Errors = append(result.Errors, joinErrs...)
	result.Warnings = append(result.Warnings, joinWarns...)

	condErrs, condWarns := v.checkConditions(cfg, table)
	result.Errors = append(result.Errors, condErrs...)
	result.Warnings = append(result.Warnings, condWarns...)

	result.Errors = append(result.Errors, v.checkGroupBy(cfg, table)...)
	result.Errors = append(result.Errors, v.checkSortBy(cfg, table)...)

	limitErrs, limitWarns := v.checkLimit(cfg, table)
	result.Errors = append(result.Errors, limitErrs...)
	result.Warnings = append(result.Warnings, limitWarns...)

	result.Errors = append(result.Errors, v.checkSecurity(cfg)...)
	result.Warnings = append(result.Warnings, v.warnSensitiveColumns(cfg)...)
	result.Warnings = append(result.Warnings, v.warnPerformance(cfg, result.Summary)...)

	result.Valid = len(result.Errors) == 0

	return result
}

// checkStructure verifies the basic shape before anything else runs
func (v *Validator) checkStructure(cfg *report.QueryConfig) []string {
	var errs []string

	if strings.TrimSpace(cfg.Table.Name) == "" {
		errs = append(errs, "table name is required")
	}

	if len(cfg.Columns) == 0 {
		errs = append(errs, "at least one column must be selected")
	}

	return errs
}

// checkColumns verifies every selected column resolves and aliases are legal
func (v *Validator) checkColumns(cfg *report.QueryConfig, table *catalog.Table) []string {
	var errs []string

	for _, col := range cfg.Columns {
		if strings.TrimSpace(col.Name) == "" {
			errs = append(errs, "selected column has an empty name")
			continue
		}

		if !v.fieldResolves(cfg, table, col.Name) {
			errs = append(errs,
				fmt.Sprintf("column %q does not exist on table %q", col.Name, table.Name))
		}

		if col.Alias != "" {
			if len(col.Alias) > maxAliasLength {
				errs = append(errs,
					fmt.Sprintf("alias %q exceeds %d characters", col.Alias, maxAliasLength))
			} else if !aliasPattern.MatchString(col.Alias) {
				errs = append(errs, fmt.Sprintf("alias %q contains invalid characters", col.Alias))
			}
		}
	}

	return errs
}

func (v *Validator) warnColumns(cfg *report.QueryConfig) []string {
	if len(cfg.Columns) > warnColumnCount {
		return []string{fmt.Sprintf(
			"selecting %d columns may be slow; consider narrowing the selection",
			len(cfg.Columns))}
	}

	return nil
}

// checkJoins verifies each manual join names a real relationship and
// target table, and validates any nested selected columns
func (v *Validator) checkJoins(cfg *report.QueryConfig, table *catalog.Table) ([]string, []string) {
	var errs, warns []string

	for _, join := range cfg.Joins {
		rel, ok := v.relationshipForJoin(table, join)
		if !ok {
			errs = append(errs, fmt.Sprintf(
				"join %q does not match any relationship on table %q",
				joinLabel(join), table.Name))

			continue
		}

		target, ok := v.catalog.Get(rel.Table)
		if !ok {
			errs = append(errs, fmt.Sprintf(
				"join %q targets unregistered table %q", joinLabel(join), rel.Table))

			continue
		}

		for _, col := range join.SelectedColumns {
			if _, ok := target.Column(col.Name); !ok {
				errs = append(errs, fmt.Sprintf(
					"column %q does not exist on joined table %q", col.Name, target.Name))
			}
		}
	}

	if len(cfg.Joins) > warnJoinCount {
		warns = append(warns, fmt.Sprintf(
			"%d joins requested; queries with many joins degrade quickly", len(cfg.Joins)))
	}

	return errs, warns
}

// relationshipForJoin locates the relationship a manual join refers to,
// matching by join name first and target table second
func (v *Validator) relationshipForJoin(table *catalog.Table, join report.Join) (catalog.Relationship, bool) {
	if join.Name != "" {
		if rel, ok := table.Relationship(join.Name); ok {
			return rel, true
		}
	}

	for _, rel := range table.Relationships {
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

// checkConditions walks the condition tree validating fields, operators,
// and value shapes
func (v *Validator) checkConditions(cfg *report.QueryConfig, table *catalog.Table) ([]string, []string) {
	if cfg.Conditions == nil {
		return nil, nil
	}

	var errs, warns []string

	leaves := cfg.Conditions.Leaves()

	for _, leaf := range leaves {
		if strings.TrimSpace(leaf.Field) == "" {
			errs = append(errs, "condition is missing a field")
			continue
		}

		if !v.fieldResolves(cfg, table, leaf.Field) {
			errs = append(errs, fmt.Sprintf(
				"condition field %q does not exist on table %q", leaf.Field, table.Name))
		}

		if !report.KnownOperator(leaf.Operator) {
			errs = append(errs, fmt.Sprintf(
				"condition on %q uses unknown operator %q", leaf.Field, leaf.Operator))

			continue
		}

		errs = append(errs, checkOperandShape(leaf)...)

		if leaf.Operator.NeedsValue() && isEmptyValue(leaf.Value) {
			warns = append(warns, fmt.Sprintf(
				"condition on %q has an empty value", leaf.Field))
		}
	}

	if len(leaves) > warnLeafCount {
		warns = append(warns, fmt.Sprintf(
			"%d filter conditions; consider simplifying the filter tree", len(leaves)))
	}

	return errs, warns
}

// checkOperandShape verifies the value matches what the operator expects
func checkOperandShape(leaf *report.Leaf) []string {
	switch leaf.Operator {
	case report.OpIn, report.OpNotIn:
		switch value := leaf.Value.(type) {
		case []interface{}:
			if len(value) == 0 {
				return []string{fmt.Sprintf(
					"condition on %q requires a non-empty list", leaf.Field)}
			}
		case string:
			if strings.TrimSpace(value) == "" {
				return []string{fmt.Sprintf(
					"condition on %q requires a non-empty list", leaf.Field)}
			}
		default:
			return []string{fmt.Sprintf(
				"condition on %q requires an array or comma-separated string", leaf.Field)}
		}
	case report.OpBetween, report.OpNotBetween:
		bounds, ok := leaf.Value.([]interface{})
		if !ok || len(bounds) != 2 {
			return []string{fmt.Sprintf(
				"condition on %q requires exactly two bounds", leaf.Field)}
		}
	}

	return nil
}

func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}

	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	return false
}

// checkGroupBy validates grouping fields and aggregate functions
func (v *Validator) checkGroupBy(cfg *report.QueryConfig, table *catalog.Table) []string {
	if len(cfg.GroupBy) == 0 {
		return nil
	}

	var errs []string

	if !table.SupportsAggregates {
		errs = append(errs, fmt.Sprintf(
			"table %q does not support aggregate queries", table.Name))
	}

	for _, group := range cfg.GroupBy {
		if strings.TrimSpace(group.GroupBy.Name) == "" {
			errs = append(errs, "group-by entry is missing a field")
			continue
		}

		if !v.fieldResolves(cfg, table, group.GroupBy.Name) {
			errs = append(errs, fmt.Sprintf(
				"group-by field %q does not exist on table %q", group.GroupBy.Name, table.Name))
		}

		if group.AggregateFn == nil || group.AggregateFn.Value == "" {
			continue
		}

		fn := strings.ToLower(group.AggregateFn.Value)
		if !allowedAggregates[fn] {
			errs = append(errs, fmt.Sprintf("unknown aggregate function %q", group.AggregateFn.Value))
			continue
		}

		if group.AggregateBy == nil || group.AggregateBy.Name == "" {
			errs = append(errs, fmt.Sprintf(
				"aggregate %q requires a target field", group.AggregateFn.Value))

			continue
		}

		if group.AggregateBy.Name == "*" {
			// The wildcard is only meaningful for count
			if fn != "count" {
				errs = append(errs, fmt.Sprintf(
					"aggregate %q cannot target the wildcard column", group.AggregateFn.Value))
			}

			continue
		}

		if !v.fieldResolves(cfg, table, group.AggregateBy.Name) {
			errs = append(errs, fmt.Sprintf(
				"aggregate target %q does not exist on table %q",
				group.AggregateBy.Name, table.Name))
		}
	}

	return errs
}

// checkSortBy validates sort fields and directions
func (v *Validator) checkSortBy(cfg *report.QueryConfig, table *catalog.Table) []string {
	var errs []string

	for _, sort := range cfg.SortBy {
		if strings.TrimSpace(sort.Column.Name) == "" {
			errs = append(errs, "sort entry is missing a field")
			continue
		}

		if !v.fieldResolves(cfg, table, sort.Column.Name) {
			errs = append(errs, fmt.Sprintf(
				"sort field %q does not exist on table %q", sort.Column.Name, table.Name))
		}

		direction := strings.ToLower(sort.Direction.Value)
		if direction != "asc" && direction != "desc" {
			errs = append(errs, fmt.Sprintf(
				"sort direction %q must be asc or desc", sort.Direction.Value))
		}
	}

	return errs
}

// checkLimit enforces the hard ceiling and the table's advisory cap.
// MaxRows always comes from the registered table definition; zero means
// no table-specific cap.
func (v *Validator) checkLimit(cfg *report.QueryConfig, table *catalog.Table) ([]string, []string) {
	var errs []string

	// Offset is checked independently of limit; a negative offset is
	// invalid even when no limit is set.
	if cfg.Offset != nil && *cfg.Offset < 0 {
		errs = append(errs, "offset must be non-negative")
	}

	if cfg.Limit == nil {
		return errs, nil
	}

	limit := *cfg.Limit

	if limit <= 0 {
		return append(errs, "limit must be a positive integer"), nil
	}

	if limit > HardRowLimit {
		return append(errs, fmt.Sprintf("limit cannot exceed 50,000 rows (requested %d)", limit)), nil
	}

	var warns []string

	if limit > WarnRowLimit {
		warns = append(warns, fmt.Sprintf(
			"limit of %d rows may be slow to execute and export", limit))
	}

	if table.MaxRows > 0 && limit > table.MaxRows {
		warns = append(warns, fmt.Sprintf(
			"limit of %d exceeds the configured maximum of %d rows for table %q",
			limit, table.MaxRows, table.Name))
	}

	return errs, warns
}

// checkSecurity screens every string value in the configuration against
// injection-like patterns
func (v *Validator) checkSecurity(cfg *report.QueryConfig) []string {
	var errs []string

	for _, candidate := range collectStrings(cfg) {
		for _, pattern := range injectionPatterns {
			if pattern.MatchString(candidate) {
				errs = append(errs, fmt.Sprintf(
					"value %q contains a disallowed SQL pattern", truncate(candidate, 60)))

				break
			}
		}
	}

	return errs
}

// warnSensitiveColumns flags selected or filtered columns whose names
// suggest secrets; this is advisory, not blocking
func (v *Validator) warnSensitiveColumns(cfg *report.QueryConfig) []string {
	var warns []string

	flag := func(field, where string) {
		lower := strings.ToLower(field)
		for _, substr := range sensitiveSubstrings {
			if strings.Contains(lower, substr) {
				warns = append(warns, fmt.Sprintf(
					"%s %q references a potentially sensitive column", where, field))

				return
			}
		}
	}

	for _, col := range cfg.Columns {
		flag(col.Name, "selected column")
	}

	if cfg.Conditions != nil {
		for _, leaf := range cfg.Conditions.Leaves() {
			flag(leaf.Field, "condition field")
		}
	}

	return warns
}

// warnPerformance emits heuristic warnings for risky query shapes
func (v *Validator) warnPerformance(cfg *report.QueryConfig, summary Summary) []string {
	var warns []string

	if summary.Complexity == "high" {
		warns = append(warns, "query complexity is high; expect slow execution")
	}

	if summary.TotalJoins > cartesianJoinRisk {
		warns = append(warns, fmt.Sprintf(
			"%d joins increase the risk of a cartesian product", summary.TotalJoins))
	}

	if summary.TotalConditions > unindexedRiskMin && cfg.Conditions != nil {
		indexed := false

		for _, leaf := range cfg.Conditions.Leaves() {
			if looksIndexed(leaf.Field) {
				indexed = true
				break
			}
		}

		if !indexed {
			warns = append(warns,
				"no condition references an indexed-looking field; a full scan is likely")
		}
	}

	return warns
}

// summarize computes the complexity score and summary counters
func (v *Validator) summarize(cfg *report.QueryConfig) Summary {
	totalJoins := len(cfg.Joins) + len(v.autoJoinPaths(cfg))

	totalConditions := 0
	if cfg.Conditions != nil {
		totalConditions = len(cfg.Conditions.Leaves())
	}

	score := len(cfg.Columns) +
		3*totalJoins +
		2*totalConditions +
		4*len(cfg.GroupBy) +
		len(cfg.SortBy)

	complexity := "low"
	performance := "fast"

	switch {
	case score >= complexityHighAt:
		complexity = "high"
		performance = "slow"
	case score >= complexityMediumAt:
		complexity = "medium"
		performance = "moderate"
	}

	return Summary{
		Complexity:           complexity,
		TotalColumns:         len(cfg.Columns),
		TotalJoins:           totalJoins,
		TotalConditions:      totalConditions,
		HasGrouping:          len(cfg.GroupBy) > 0,
		HasSorting:           len(cfg.SortBy) > 0,
		HasLimit:             cfg.Limit != nil,
		EstimatedPerformance: performance,
	}
}

// autoJoinPaths returns the distinct auto-relationship prefixes
// referenced anywhere in the configuration, in first-reference order
func (v *Validator) autoJoinPaths(cfg *report.QueryConfig) []string {
	table, ok := v.catalog.Get(cfg.Table.Name)
	if !ok {
		return nil
	}

	seen := make(map[string]bool)

	var paths []string

	consider := func(field string) {
		relName, _, dotted := strings.Cut(field, ".")
		if !dotted || seen[relName] {
			return
		}

		if rel, ok := table.Relationship(relName); ok && rel.Mode == catalog.JoinAuto {
			seen[relName] = true
			paths = append(paths, relName)
		}
	}

	for _, col := range cfg.Columns {
		consider(col.Name)
	}

	if cfg.Conditions != nil {
		for _, leaf := range cfg.Conditions.Leaves() {
			consider(leaf.Field)
		}
	}

	for _, group := range cfg.GroupBy {
		consider(group.GroupBy.Name)

		if group.AggregateBy != nil {
			consider(group.AggregateBy.Name)
		}
	}

	for _, sort := range cfg.SortBy {
		consider(sort.Column.Name)
	}

	return paths
}

// fieldResolves reports whether a (possibly dotted) field reference is
// legal: a direct column, a JSON subfield, an auto-relationship column,
// or a manual-relationship column whose join is declared in the config
func (v *Validator) fieldResolves(cfg *report.QueryConfig, table *catalog.Table, field string) bool {
	relName, colName, dotted := strings.Cut(field, ".")
	if !dotted {
		_, ok := table.Column(field)

		return ok
	}

	if col, ok := table.Column(relName); ok && col.Type == catalog.TypeJSON {
		return true
	}

	rel, ok := table.Relationship(relName)
	if !ok {
		return false
	}

	if rel.Mode == catalog.JoinManual && !joinDeclared(cfg, rel) {
		return false
	}

	related, ok := v.catalog.Get(rel.Table)
	if !ok {
		return false
	}

	_, ok = related.Column(colName)

	return ok
}

// joinDeclared reports whether a manual relationship appears in the
// config's join list
func joinDeclared(cfg *report.QueryConfig, rel catalog.Relationship) bool {
	for _, join := range cfg.Joins {
		if join.Name == rel.Name || join.Table == rel.Table {
			return true
		}
	}

	return false
}

// collectStrings gathers every string value reachable from the
// configuration, in a fixed traversal order, for the security screen
func collectStrings(cfg *report.QueryConfig) []string {
	var values []string

	values = append(values, cfg.Table.Name)

	for _, col := range cfg.Columns {
		values = append(values, col.Name, col.Alias)
	}

	for _, join := range cfg.Joins {
		values = append(values, join.Name, join.Table, join.Alias, join.LocalKey, join.ForeignKey)

		for _, col := range join.SelectedColumns {
			values = append(values, col.Name, col.Alias)
		}
	}

	if cfg.Conditions != nil {
		for _, leaf := range cfg.Conditions.Leaves() {
			values = append(values, leaf.Field)
			values = append(values, stringsFromValue(leaf.Value)...)
		}
	}

	for _, group := range cfg.GroupBy {
		values = append(values, group.GroupBy.Name)

		if group.AggregateFn != nil {
			values = append(values, group.AggregateFn.Value)
		}

		if group.AggregateBy != nil {
			values = append(values, group.AggregateBy.Name)
		}
	}

	for _, sort := range cfg.SortBy {
		values = append(values, sort.Column.Name, sort.Direction.Value)
	}

	filtered := values[:0]

	for _, value := range values {
		if value != "" {
			filtered = append(filtered, value)
		}
	}

	return filtered
}

func stringsFromValue(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []interface{}:
		var out []string

		for _, item := range v {
			out = append(out, stringsFromValue(item)...)
		}

		return out
	default:
		return nil
	}
}

func looksIndexed(field string) bool {
	lower := strings.ToLower(field)
	if i := strings.LastIndex(lower, "."); i >= 0 {
		lower = lower[i+1:]
	}

	if indexedNames[lower] {
		return true
	}

	for _, suffix := range indexedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max-3] + "..."
}
