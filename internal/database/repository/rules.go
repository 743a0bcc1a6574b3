package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jask/banksync/internal/rules"
)

var (
	// ErrRuleNotFound is returned when the referenced rule does not exist.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrDuplicatePattern is returned when another rule already has the same
	// pattern, kind and field.
	ErrDuplicatePattern = errors.New("a rule with this pattern already exists")
)

// RuleRepo stores user-defined categorization rules.
type RuleRepo struct{ db *sql.DB }

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, name, pattern, kind, field, category_id, category_name, payee_override, priority, enabled`

// Create validates and inserts a rule. A malformed regex is rejected here so
// it can never surface during batch matching.
func (r *RuleRepo) Create(ctx context.Context, rule rules.Rule) error {
	if err := rules.ValidatePattern(rule.Pattern, rule.Kind); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO rules(`+ruleColumns+`, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, rule.ID, rule.Name, rule.Pattern, string(rule.Kind), string(rule.Field),
		rule.CategoryID, rule.CategoryName, rule.PayeeOverride, rule.Priority, rule.Enabled)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrDuplicatePattern
	}
	return err
}

// Update rewrites all mutable fields of an existing rule.
func (r *RuleRepo) Update(ctx context.Context, rule rules.Rule) error {
	if err := rules.ValidatePattern(rule.Pattern, rule.Kind); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE rules SET name=?, pattern=?, kind=?, field=?, category_id=?, category_name=?,
	 payee_override=?, priority=?, enabled=?, updated_at=CURRENT_TIMESTAMP
	WHERE id=?
	`, rule.Name, rule.Pattern, string(rule.Kind), string(rule.Field), rule.CategoryID,
		rule.CategoryName, rule.PayeeOverride, rule.Priority, rule.Enabled, rule.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicatePattern
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}
	return nil
}

// Delete removes a rule.
func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return nil
}

// EnabledByPriority returns the enabled rules ordered by ascending priority,
// the order the matcher evaluates them in.
func (r *RuleRepo) EnabledByPriority(ctx context.Context) ([]rules.Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM rules WHERE enabled=1 ORDER BY priority ASC, created_at ASC`)
}

// List returns all rules, enabled or not, by priority.
func (r *RuleRepo) List(ctx context.Context) ([]rules.Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY priority ASC, created_at ASC`)
}

func (r *RuleRepo) list(ctx context.Context, query string) ([]rules.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rules.Rule
	for rows.Next() {
		var rule rules.Rule
		var kind, field string
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Pattern, &kind, &field,
			&rule.CategoryID, &rule.CategoryName, &rule.PayeeOverride, &rule.Priority, &rule.Enabled); err != nil {
			return nil, err
		}
		rule.Kind = rules.PatternKind(kind)
		rule.Field = rules.TargetField(field)
		out = append(out, rule)
	}
	return out, rows.Err()
}
