package safety

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Deployments that need site-specific detection rules keep them in a
// pattern_rules table; rows are loaded once at startup and merged over the
// built-in catalog. A bad row is skipped with a warning rather than failing
// the load; the built-in rules are the safety floor either way.

type ruleRow struct {
	ID        string
	Category  string
	Severity  int
	Outcome   string
	Pattern   string
	IsLiteral bool
	Detail    sql.NullString
}

// LoadPostgresRules reads additional pattern rules ordered by position.
func LoadPostgresRules(ctx context.Context, db *sql.DB, logger *zap.Logger) ([]Rule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, category, severity, outcome, pattern, is_literal, detail
		FROM pattern_rules
		WHERE enabled
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("LoadPostgresRules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r ruleRow
		if err := rows.Scan(&r.ID, &r.Category, &r.Severity, &r.Outcome, &r.Pattern, &r.IsLiteral, &r.Detail); err != nil {
			return nil, fmt.Errorf("LoadPostgresRules: scan: %w", err)
		}
		rule, err := parseRuleRow(&r)
		if err != nil {
			logger.Warn("skipping invalid pattern rule",
				zap.String("rule_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadPostgresRules: %w", err)
	}
	return rules, nil
}

func parseRuleRow(row *ruleRow) (Rule, error) {
	cat, err := parseCategory(row.Category)
	if err != nil {
		return Rule{}, err
	}
	out, err := parseOutcome(row.Outcome)
	if err != nil {
		return Rule{}, err
	}
	sev := Severity(row.Severity)
	if sev < SeverityLow || sev > SeverityCritical {
		return Rule{}, fmt.Errorf("severity %d out of range", row.Severity)
	}

	rule := Rule{
		ID:       row.ID,
		Category: cat,
		Severity: sev,
		Outcome:  out,
		Detail:   row.Detail.String,
	}
	if rule.Detail == "" {
		rule.Detail = "custom pattern rule"
	}

	if row.IsLiteral {
		rule.literal = strings.ToLower(row.Pattern)
		return rule, nil
	}
	re, err := regexp.Compile(row.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("pattern: %w", err)
	}
	rule.re = re
	return rule, nil
}

func parseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "destructive":
		return CategoryDestructive, nil
	case "credential":
		return CategoryCredential, nil
	case "pii":
		return CategoryPII, nil
	case "injection":
		return CategoryInjection, nil
	case "unsafe_url", "unsafeurl":
		return CategoryUnsafeURL, nil
	default:
		return CategoryNone, fmt.Errorf("unknown category %q", s)
	}
}

func parseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(s) {
	case "block":
		return OutcomeBlock, nil
	case "redact":
		return OutcomeRedact, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
}
