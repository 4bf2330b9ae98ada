// Package expr validates user-authored computed-column SQL expressions
// before they may be embedded as raw fragments in generated SQL. It is
// deliberately not a SQL parser: it screens text against a keyword
// deny-list, a function allow-list, a dangerous-operator scan, and the
// schema catalog. It never executes anything.
package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kyleking/report-engine/internal/catalog"
)

// Result carries the outcome of validating one expression
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// forbiddenKeywords are rejected anywhere in an expression, whole-word
// and case-insensitive.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE", "ALTER", "CREATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "UNION", "INTO",
	"INFORMATION_SCHEMA", "LOAD_FILE", "OUTFILE", "DUMPFILE",
	"BENCHMARK", "SLEEP",
}

// allowedFunctions is the fixed whitelist of callable functions
var allowedFunctions = map[string]bool{
	// date
	"now": true, "curdate": true, "curtime": true, "date": true,
	"date_format": true, "date_add": true, "date_sub": true,
	"datediff": true, "year": true, "month": true, "day": true,
	"hour": true, "minute": true, "second": true, "dayofweek": true,
	"last_day": true, "extract": true,
	// string
	"concat": true, "concat_ws": true, "substring": true, "substr": true,
	"upper": true, "lower": true, "trim": true, "ltrim": true,
	"rtrim": true, "length": true, "char_length": true, "replace": true,
	"left": true, "right": true, "lpad": true, "rpad": true,
	"locate": true, "reverse": true,
	// numeric
	"round": true, "floor": true, "ceil": true, "ceiling": true,
	"abs": true, "mod": true, "power": true, "pow": true, "sqrt": true,
	"exp": true, "ln": true, "log": true, "sign": true, "truncate_num": true,
	// conditional
	"if": true, "ifnull": true, "nullif": true, "coalesce": true,
	"greatest": true, "least": true, "isnull": true,
	// aggregate
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"group_concat": true,
	// cast
	"cast": true, "convert": true,
}

// sqlKeywords are skipped during identifier resolution; they are part
// of expression syntax, not column references.
var sqlKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "null": true, "is": true,
	"in": true, "like": true, "between": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "as": true,
	"distinct": true, "true": true, "false": true, "asc": true,
	"desc": true, "interval": true, "div": true, "separator": true,
	"integer": true, "decimal": true, "char": true, "signed": true,
	"unsigned": true, "from": true,
}

var (
	wordPattern     = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)
	functionPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	literalPattern  = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)
)

// dangerousOperators are rejected outside string literals
var dangerousOperators = []string{"||", "&&", ";", "--", "/*", "*/"}

// Validator validates computed-column expressions against the catalog
type Validator struct {
	catalog catalog.Catalog
}

// NewValidator creates an expression validator backed by the catalog
func NewValidator(cat catalog.Catalog) *Validator {
	return &Validator{catalog: cat}
}

// Validate runs every check on the expression and accumulates errors.
// siblings names other computed columns the expression may reference.
func (v *Validator) Validate(expression, tableName string, siblings []string) Result {
	var errs []string

	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return Result{Valid: false, Errors: []string{"expression is empty"}}
	}

	errs = append(errs, v.checkForbiddenKeywords(trimmed)...)
	errs = append(errs, v.checkFunctions(trimmed)...)

	stripped := stripLiterals(trimmed)

	errs = append(errs, v.checkDangerousOperators(stripped)...)
	errs = append(errs, v.checkColumnReferences(stripped, tableName, siblings)...)

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// checkForbiddenKeywords flags deny-listed keywords, whole-word and
// case-insensitive
func (v *Validator) checkForbiddenKeywords(expression string) []string {
	var errs []string

	for _, keyword := range forbiddenKeywords {
		pattern := regexp.MustCompile(`(?i)\b` + keyword + `\b`)
		if pattern.MatchString(expression) {
			errs = append(errs, fmt.Sprintf("forbidden keyword %q is not allowed", keyword))
		}
	}

	return errs
}

// checkFunctions requires every identifier followed by "(" to be on the
// function whitelist
func (v *Validator) checkFunctions(expression string) []string {
	var errs []string

	seen := make(map[string]bool)

	for _, match := range functionPattern.FindAllStringSubmatch(stripLiterals(expression), -1) {
		name := strings.ToLower(match[1])
		if seen[name] {
			continue
		}

		seen[name] = true

		if sqlKeywords[name] {
			continue
		}

		if !allowedFunctions[name] {
			errs = append(errs, fmt.Sprintf("function %q is not in the allowed list", match[1]))
		}
	}

	return errs
}

// checkDangerousOperators rejects injection-prone operators; literals
// must already be stripped by the caller
func (v *Validator) checkDangerousOperators(stripped string) []string {
	var errs []string

	for _, op := range dangerousOperators {
		if strings.Contains(stripped, op) {
			errs = append(errs, fmt.Sprintf("operator %q is not allowed", op))
		}
	}

	return errs
}

// checkColumnReferences resolves every bare identifier against the base
// table: direct visible column, JSON subfield on a json column, one-hop
// relationship column, or a deeper dotted path (conservatively allowed).
func (v *Validator) checkColumnReferences(stripped, tableName string, siblings []string) []string {
	table, ok := v.catalog.Get(tableName)
	if !ok {
		return []string{fmt.Sprintf("table %q is not registered", tableName)}
	}

	siblingSet := make(map[string]bool, len(siblings))
	for _, name := range siblings {
		siblingSet[strings.ToLower(name)] = true
	}

	var errs []string

	seen := make(map[string]bool)

	for _, word := range wordPattern.FindAllString(stripped, -1) {
		lower := strings.ToLower(word)

		if seen[lower] {
			continue
		}

		seen[lower] = true

		if sqlKeywords[lower] || allowedFunctions[lower] || siblingSet[lower] {
			continue
		}

		if isNumericLiteral(word) {
			continue
		}

		if v.resolves(table, word) {
			continue
		}

		errs = append(errs, fmt.Sprintf("unknown column reference %q", word))
	}

	return errs
}

// resolves reports whether one identifier is a legal column reference
// on the table
func (v *Validator) resolves(table *catalog.Table, word string) bool {
	parts := strings.Split(word, ".")

	switch len(parts) {
	case 1:
		col, ok := table.Column(word)

		return ok && !col.Hidden
	case 2:
		// JSON subfield access on a json-typed column
		if col, ok := table.Column(parts[0]); ok && col.Type == catalog.TypeJSON {
			return true
		}

		// One-hop relationship column, auto or manual
		rel, ok := table.Relationship(parts[0])
		if !ok {
			return false
		}

		related, ok := v.catalog.Get(rel.Table)
		if !ok {
			return false
		}

		col, ok := related.Column(parts[1])

		return ok && !col.Hidden
	default:
		// Deeper dotted paths are plausibly nested relationships;
		// allowed rather than rejected to avoid false positives.
		return true
	}
}

// stripLiterals removes single- and double-quoted string literals so
// their contents are not scanned as identifiers or operators
func stripLiterals(expression string) string {
	return literalPattern.ReplaceAllString(expression, "''")
}

// isNumericLiteral reports whether a token is a number
func isNumericLiteral(word string) bool {
	_, err := strconv.ParseFloat(word, 64)

	return err == nil
}
