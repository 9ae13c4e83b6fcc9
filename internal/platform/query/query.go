package query

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
)

// ParamType defines how a filter parameter is translated to SQL.
type ParamType int

const (
	ParamToken     ParamType = iota // exact match on a code/status column
	ParamDate                       // supports prefixes (gt, lt, ge, le, ne, eq)
	ParamString                     // case-insensitive contains match
	ParamReference                  // exact match on a foreign-key column
	ParamNumber                     // supports prefixes (gt, lt, ge, le, ne, eq)
	ParamBool                       // true/false match
)

// ParamConfig maps a filter parameter name to its database column.
type ParamConfig struct {
	Type   ParamType
	Column string
}

// Builder assembles SQL WHERE clauses from request filter parameters.
// It encapsulates the common list/search pattern used across the domain
// repositories.
type Builder struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// New creates a Builder for the given table and select columns.
func New(table, cols string) *Builder {
	return &Builder{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Idx returns the next available parameter index.
func (q *Builder) Idx() int { return q.idx }

// Add appends a raw WHERE clause fragment (without leading "AND").
func (q *Builder) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// AddToken adds an exact-match clause for a code or status column.
func (q *Builder) AddToken(column, value string) {
	q.where += fmt.Sprintf(" AND %s = $%d", column, q.idx)
	q.args = append(q.args, value)
	q.idx++
}

// AddDate adds a date clause with comparison prefix support. The value may
// start with eq, ne, gt, lt, ge or le; a bare value means equality.
func (q *Builder) AddDate(column, value string) {
	op, rest := splitPrefix(value)
	q.where += fmt.Sprintf(" AND %s %s $%d", column, op, q.idx)
	q.args = append(q.args, rest)
	q.idx++
}

// AddString adds a case-insensitive contains clause.
func (q *Builder) AddString(column, value string) {
	q.where += fmt.Sprintf(" AND %s ILIKE $%d", column, q.idx)
	q.args = append(q.args, "%"+value+"%")
	q.idx++
}

// AddNumber adds a numeric clause with comparison prefix support.
func (q *Builder) AddNumber(column, value string) {
	op, rest := splitPrefix(value)
	q.where += fmt.Sprintf(" AND %s %s $%d", column, op, q.idx)
	q.args = append(q.args, rest)
	q.idx++
}

// AddBool adds a boolean clause. Any value other than "true" (case-insensitive)
// is treated as false.
func (q *Builder) AddBool(column, value string) {
	q.where += fmt.Sprintf(" AND %s = $%d", column, q.idx)
	q.args = append(q.args, strings.EqualFold(value, "true"))
	q.idx++
}

// splitPrefix extracts a comparison prefix from a filter value and returns the
// SQL operator plus the remaining value.
func splitPrefix(value string) (string, string) {
	prefixes := map[string]string{
		"eq": "=",
		"ne": "<>",
		"gt": ">",
		"lt": "<",
		"ge": ">=",
		"le": "<=",
	}
	if len(value) > 2 {
		if op, ok := prefixes[value[:2]]; ok {
			return op, value[2:]
		}
	}
	return "=", value
}

// ApplyParam applies a single filter parameter using the config.
func (q *Builder) ApplyParam(config ParamConfig, value string) {
	switch config.Type {
	case ParamDate:
		q.AddDate(config.Column, value)
	case ParamString:
		q.AddString(config.Column, value)
	case ParamNumber:
		q.AddNumber(config.Column, value)
	case ParamBool:
		q.AddBool(config.Column, value)
	default:
		q.AddToken(config.Column, value)
	}
}

// ApplyParams applies all matching filter parameters from the given map.
// Parameters without a config entry are ignored.
func (q *Builder) ApplyParams(params map[string]string, configs map[string]ParamConfig) {
	for name, value := range params {
		if config, ok := configs[name]; ok {
			q.ApplyParam(config, value)
		}
	}
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *Builder) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// ApplySort processes the sort parameter and sets ORDER BY using config column
// mappings. The value is a comma-separated list of param names, optionally
// prefixed with - for DESC. Falls back to defaultOrder when empty or when no
// listed field is known.
func (q *Builder) ApplySort(sortParam, defaultOrder string, configs map[string]ParamConfig) {
	if sortParam == "" {
		q.orderBy = defaultOrder
		return
	}
	var parts []string
	for _, field := range strings.Split(sortParam, ",") {
		field = strings.TrimSpace(field)
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		if config, ok := configs[field]; ok {
			if desc {
				parts = append(parts, config.Column+" DESC")
			} else {
				parts = append(parts, config.Column+" ASC")
			}
		}
	}
	if len(parts) > 0 {
		q.orderBy = strings.Join(parts, ", ")
	} else {
		q.orderBy = defaultOrder
	}
}

// CountSQL returns the count query SQL.
func (q *Builder) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *Builder) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *Builder) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// AllSQL returns the data query SQL without pagination, for report-style
// full scans. Use CountArgs for its arguments.
func (q *Builder) AllSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	return sql
}

// DataArgs returns the arguments for the data query (filter args + limit + offset).
func (q *Builder) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}

// controlParams are query-string keys that never map to filter columns.
var controlParams = map[string]bool{
	"limit":  true,
	"offset": true,
	"sort":   true,
	"export": true,
}

// ExtractParams extracts filter parameters from the query string, excluding
// control parameters. Unknown params are included; ApplyParams ignores ones
// not in the repository's config.
func ExtractParams(c echo.Context) map[string]string {
	params := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) == 0 || controlParams[k] {
			continue
		}
		params[k] = v[0]
	}
	return params
}
