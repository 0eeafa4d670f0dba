package postgres

import (
	"fmt"
	"strings"

	"github.com/helioscope/solar-anomaly/internal/models"
)

// findingFilter renders the WHERE clause for q. Placeholders start at $1.
func findingFilter(q models.FindingQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.UnitID != "" {
		conds = append(conds, "unit_id = "+arg(q.UnitID))
	}
	if len(q.Types) > 0 {
		conds = append(conds, "type = ANY("+arg(toStrings(q.Types))+")")
	}
	if len(q.Severities) > 0 {
		conds = append(conds, "severity = ANY("+arg(toStrings(q.Severities))+")")
	}
	if len(q.Statuses) > 0 {
		conds = append(conds, "status = ANY("+arg(toStrings(q.Statuses))+")")
	}
	if !q.From.IsZero() {
		conds = append(conds, "detected_at >= "+arg(q.From.UTC()))
	}
	if !q.To.IsZero() {
		conds = append(conds, "detected_at <= "+arg(q.To.UTC()))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func findSQL(q models.FindingQuery) (string, []any) {
	where, args := findingFilter(q)
	sql := `SELECT ` + findingColumns + ` FROM findings` + where + ` ORDER BY detected_at DESC, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return sql, args
}

var groupColumns = map[models.GroupField]string{
	models.GroupByType:     "type",
	models.GroupBySeverity: "severity",
	models.GroupByStatus:   "status",
}

func countByGroupSQL(q models.FindingQuery, field models.GroupField) (string, []any, error) {
	col, ok := groupColumns[field]
	if !ok {
		return "", nil, fmt.Errorf("unknown group field %q", field)
	}
	where, args := findingFilter(q)
	return `SELECT ` + col + `, count(*) FROM findings` + where + ` GROUP BY ` + col, args, nil
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
