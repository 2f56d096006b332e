package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"alertline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertRuleTx(ctx context.Context, tx *sql.Tx, rule domain.NotificationRule) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notification_rules(id,entity_type,status_field,trigger_status,name,message_template,is_active,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rule.ID, rule.EntityType, rule.StatusField, rule.TriggerStatus, rule.Name,
		nullableStringPtr(rule.MessageTemplate), boolInt(rule.IsActive), rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertRecipientsTx(ctx, tx, rule.ID, rule.Recipients)
}

func (r Repo) UpdateRuleTx(ctx context.Context, tx *sql.Tx, rule domain.NotificationRule) error {
	res, err := tx.ExecContext(ctx, `UPDATE notification_rules SET entity_type=?, status_field=?, trigger_status=?, name=?, message_template=?, is_active=?, updated_at=? WHERE id=?`,
		rule.EntityType, rule.StatusField, rule.TriggerStatus, rule.Name,
		nullableStringPtr(rule.MessageTemplate), boolInt(rule.IsActive), rule.UpdatedAt, rule.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceRecipientsTx swaps the full recipient set of a rule.
func (r Repo) ReplaceRecipientsTx(ctx context.Context, tx *sql.Tx, ruleID string, recipients []domain.RuleRecipient) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_recipients WHERE rule_id=?`, ruleID); err != nil {
		return err
	}
	return r.insertRecipientsTx(ctx, tx, ruleID, recipients)
}

func (r Repo) insertRecipientsTx(ctx context.Context, tx *sql.Tx, ruleID string, recipients []domain.RuleRecipient) error {
	for _, rec := range recipients {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rule_recipients(id,rule_id,mode,user_id,role_id) VALUES (?,?,?,?,?)`,
			rec.ID, ruleID, rec.Mode, nullableStringPtr(rec.UserID), nullableStringPtr(rec.RoleID)); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) DeleteRuleTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM notification_rules WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetRule(ctx context.Context, id string) (domain.NotificationRule, error) {
	rule, err := scanRule(r.DB.QueryRowContext(ctx, `SELECT id,entity_type,status_field,trigger_status,name,message_template,is_active,created_by,created_at,updated_at FROM notification_rules WHERE id=?`, id))
	if err != nil {
		return rule, err
	}
	rule.Recipients, err = r.listRecipients(ctx, rule.ID)
	return rule, err
}

func scanRule(row *sql.Row) (domain.NotificationRule, error) {
	var rule domain.NotificationRule
	var template sql.NullString
	var active int
	err := row.Scan(&rule.ID, &rule.EntityType, &rule.StatusField, &rule.TriggerStatus, &rule.Name,
		&template, &active, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return rule, ErrNotFound
	}
	if err != nil {
		return rule, err
	}
	if template.Valid {
		rule.MessageTemplate = &template.String
	}
	rule.IsActive = active != 0
	return rule, nil
}

type RuleFilters struct {
	EntityType      string
	IsActive        *bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListRules(ctx context.Context, f RuleFilters) ([]domain.NotificationRule, error) {
	var clauses []string
	var args []any
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, f.EntityType)
	}
	if f.IsActive != nil {
		clauses = append(clauses, "is_active=?")
		args = append(args, boolInt(*f.IsActive))
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,entity_type,status_field,trigger_status,name,message_template,is_active,created_by,created_at,updated_at FROM notification_rules ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rules, err := r.queryRules(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		rules[i].Recipients, err = r.listRecipients(ctx, rules[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// FindActiveRules returns active rules matching the exact trigger, oldest
// first so the rule supplying a deduplicated message is deterministic.
func (r Repo) FindActiveRules(ctx context.Context, entityType, statusField, triggerStatus string) ([]domain.NotificationRule, error) {
	rules, err := r.queryRules(ctx,
		`SELECT id,entity_type,status_field,trigger_status,name,message_template,is_active,created_by,created_at,updated_at FROM notification_rules
WHERE entity_type=? AND status_field=? AND trigger_status=? AND is_active=1 ORDER BY created_at ASC, id ASC`,
		entityType, statusField, triggerStatus)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		rules[i].Recipients, err = r.listRecipients(ctx, rules[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func (r Repo) queryRules(ctx context.Context, query string, args ...any) ([]domain.NotificationRule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NotificationRule
	for rows.Next() {
		var rule domain.NotificationRule
		var template sql.NullString
		var active int
		if err := rows.Scan(&rule.ID, &rule.EntityType, &rule.StatusField, &rule.TriggerStatus, &rule.Name,
			&template, &active, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		if template.Valid {
			rule.MessageTemplate = &template.String
		}
		rule.IsActive = active != 0
		res = append(res, rule)
	}
	return res, rows.Err()
}

func (r Repo) listRecipients(ctx context.Context, ruleID string) ([]domain.RuleRecipient, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,rule_id,mode,user_id,role_id FROM rule_recipients WHERE rule_id=? ORDER BY id ASC`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RuleRecipient
	for rows.Next() {
		var rec domain.RuleRecipient
		var userID, roleID sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.Mode, &userID, &roleID); err != nil {
			return nil, err
		}
		if userID.Valid {
			rec.UserID = &userID.String
		}
		if roleID.Valid {
			rec.RoleID = &roleID.String
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
