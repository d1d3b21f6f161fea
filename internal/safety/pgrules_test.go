package safety

import (
	"database/sql"
	"testing"
)

func TestParseRuleRow(t *testing.T) {
	tests := []struct {
		name    string
		row     ruleRow
		wantErr bool
		check   func(t *testing.T, r Rule)
	}{
		{
			name: "literal block rule",
			row: ruleRow{
				ID: "custom.banned", Category: "destructive", Severity: 3,
				Outcome: "block", Pattern: "Frobnicate", IsLiteral: true,
				Detail: sql.NullString{String: "site action", Valid: true},
			},
			check: func(t *testing.T, r Rule) {
				if !r.Cheap() {
					t.Errorf("expected literal rule")
				}
				if !r.Matches("please frobnicate", "please frobnicate") {
					t.Errorf("literal did not match lowercased input")
				}
				if r.Outcome != OutcomeBlock || r.Category != CategoryDestructive {
					t.Errorf("unexpected rule: %+v", r)
				}
			},
		},
		{
			name: "regex redact rule with default detail",
			row: ruleRow{
				ID: "custom.badge", Category: "pii", Severity: 2,
				Outcome: "redact", Pattern: `\bEMP-\d{6}\b`,
			},
			check: func(t *testing.T, r Rule) {
				if r.Cheap() {
					t.Errorf("expected regex rule")
				}
				if !r.Matches("badge EMP-123456", "badge emp-123456") {
					t.Errorf("regex did not match")
				}
				if r.Detail != "custom pattern rule" {
					t.Errorf("expected default detail, got %q", r.Detail)
				}
			},
		},
		{
			name:    "unknown category",
			row:     ruleRow{ID: "x", Category: "malware", Severity: 2, Outcome: "block", Pattern: "x"},
			wantErr: true,
		},
		{
			name:    "unknown outcome",
			row:     ruleRow{ID: "x", Category: "pii", Severity: 2, Outcome: "allow", Pattern: "x"},
			wantErr: true,
		},
		{
			name:    "severity out of range",
			row:     ruleRow{ID: "x", Category: "pii", Severity: 9, Outcome: "redact", Pattern: "x"},
			wantErr: true,
		},
		{
			name:    "invalid regex",
			row:     ruleRow{ID: "x", Category: "injection", Severity: 2, Outcome: "block", Pattern: "([unclosed"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := parseRuleRow(&tt.row)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got rule %+v", rule)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, rule)
		})
	}
}
