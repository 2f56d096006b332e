package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alertline/internal/config"
	"alertline/internal/dispatch"
	"alertline/internal/domain"
	"alertline/internal/engine/auth"
	"alertline/internal/events"
	"alertline/internal/registry"
	"alertline/internal/render"
	"alertline/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Auth       auth.Service
	Config     *config.Config
	Log        *slog.Logger
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log *slog.Logger) *Engine {
	reg := registry.New()
	r := repo.Repo{DB: db}
	w := events.Writer{DB: db}
	return &Engine{
		DB:       db,
		Repo:     r,
		Events:   w,
		Registry: reg,
		Dispatcher: &dispatch.Dispatcher{
			Repo:     r,
			Registry: reg,
			Events:   w,
			Config:   cfg,
			Log:      log,
		},
		Auth:   auth.Service{DB: db},
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// requireAdmin gates rule administration behind the admin role.
func (e *Engine) requireAdmin(ctx context.Context, actorID string) error {
	if actorID == "" {
		return errors.New("actor required")
	}
	ok, err := e.Auth.UserHasRole(ctx, actorID, "admin")
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Role: "admin"}
	}
	return nil
}

// SeedFromConfig inserts the config's seed users and their roles, skipping
// any that already exist.
func (e *Engine) SeedFromConfig(ctx context.Context) error {
	if e.Config == nil || len(e.Config.Seed.Users) == 0 {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	for _, u := range e.Config.Seed.Users {
		name := u.DisplayName
		if name == "" {
			name = u.ID
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(id,display_name,is_active,created_at) VALUES (?,?,1,?)`, u.ID, name, now); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		for _, role := range u.Roles {
			if err := e.Repo.GrantRoleTx(ctx, tx, u.ID, role); err != nil {
				return fmt.Errorf("seed role %s for %s: %w", role, u.ID, err)
			}
		}
	}
	return tx.Commit()
}

// RecipientOptions describes one recipient row of a rule.
type RecipientOptions struct {
	Mode   string
	UserID string
	RoleID string
}

// RuleCreateOptions are parameters for creating a notification rule.
type RuleCreateOptions struct {
	EntityType      string
	TriggerStatus   string
	Name            string
	MessageTemplate string
	Recipients      []RecipientOptions
	ActorID         string
}

func (e *Engine) CreateRule(ctx context.Context, opts RuleCreateOptions) (domain.NotificationRule, error) {
	if err := e.requireAdmin(ctx, opts.ActorID); err != nil {
		return domain.NotificationRule{}, err
	}
	if opts.Name == "" {
		return domain.NotificationRule{}, errors.New("name is required")
	}
	desc, ok := e.Registry.Lookup(opts.EntityType)
	if !ok {
		return domain.NotificationRule{}, fmt.Errorf("unknown entity type %s", opts.EntityType)
	}
	if !e.Registry.ValidStatus(opts.EntityType, opts.TriggerStatus) {
		return domain.NotificationRule{}, fmt.Errorf("status %s is not valid for %s", opts.TriggerStatus, opts.EntityType)
	}
	if opts.MessageTemplate != "" {
		if err := render.Validate(opts.MessageTemplate); err != nil {
			return domain.NotificationRule{}, fmt.Errorf("message template: %w", err)
		}
	}
	recipients, err := e.buildRecipients(ctx, opts.Recipients)
	if err != nil {
		return domain.NotificationRule{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	rule := domain.NotificationRule{
		ID:            uuid.NewString(),
		EntityType:    opts.EntityType,
		StatusField:   desc.StatusField,
		TriggerStatus: opts.TriggerStatus,
		Name:          opts.Name,
		IsActive:      true,
		Recipients:    recipients,
		CreatedBy:     opts.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.MessageTemplate != "" {
		rule.MessageTemplate = &opts.MessageTemplate
	}
	for i := range rule.Recipients {
		rule.Recipients[i].RuleID = rule.ID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.NotificationRule{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRuleTx(ctx, tx, rule); err != nil {
		return domain.NotificationRule{}, fmt.Errorf("insert rule: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "rule.created", "rule", rule.ID, opts.ActorID, events.EventPayload{
		"entity_type":    rule.EntityType,
		"trigger_status": rule.TriggerStatus,
		"name":           rule.Name,
	}); err != nil {
		return domain.NotificationRule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.NotificationRule{}, err
	}
	return rule, nil
}

func (e *Engine) buildRecipients(ctx context.Context, in []RecipientOptions) ([]domain.RuleRecipient, error) {
	if len(in) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	var out []domain.RuleRecipient
	for _, opt := range in {
		rec := domain.RuleRecipient{ID: uuid.NewString(), Mode: opt.Mode}
		switch opt.Mode {
		case domain.RecipientUser:
			if opt.UserID == "" {
				return nil, errors.New("user recipient requires user_id")
			}
			if _, err := e.Repo.GetUser(ctx, opt.UserID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return nil, fmt.Errorf("unknown user %s", opt.UserID)
				}
				return nil, err
			}
			rec.UserID = &opt.UserID
		case domain.RecipientCreator, domain.RecipientAssignee:
			if opt.UserID != "" {
				if _, err := e.Repo.GetUser(ctx, opt.UserID); err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return nil, fmt.Errorf("unknown user %s", opt.UserID)
					}
					return nil, err
				}
				rec.UserID = &opt.UserID
			}
		case domain.RecipientRole:
			if opt.RoleID == "" {
				return nil, errors.New("role recipient requires role_id")
			}
			if e.Config != nil && !e.Config.KnownRole(opt.RoleID) {
				return nil, fmt.Errorf("unknown role %s", opt.RoleID)
			}
			rec.RoleID = &opt.RoleID
		default:
			return nil, fmt.Errorf("unknown recipient mode %s", opt.Mode)
		}
		out = append(out, rec)
	}
	return out, nil
}

// RuleUpdateOptions carries the mutable fields of a rule. Nil means keep.
type RuleUpdateOptions struct {
	ID              string
	Name            *string
	TriggerStatus   *string
	MessageTemplate *string
	IsActive        *bool
	Recipients      *[]RecipientOptions
	ActorID         string
}

func (e *Engine) UpdateRule(ctx context.Context, opts RuleUpdateOptions) (domain.NotificationRule, error) {
	if err := e.requireAdmin(ctx, opts.ActorID); err != nil {
		return domain.NotificationRule{}, err
	}
	rule, err := e.Repo.GetRule(ctx, opts.ID)
	if err != nil {
		return domain.NotificationRule{}, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return domain.NotificationRule{}, errors.New("name cannot be empty")
		}
		rule.Name = *opts.Name
	}
	if opts.TriggerStatus != nil {
		if !e.Registry.ValidStatus(rule.EntityType, *opts.TriggerStatus) {
			return domain.NotificationRule{}, fmt.Errorf("status %s is not valid for %s", *opts.TriggerStatus, rule.EntityType)
		}
		rule.TriggerStatus = *opts.TriggerStatus
	}
	if opts.MessageTemplate != nil {
		if *opts.MessageTemplate == "" {
			rule.MessageTemplate = nil
		} else {
			if err := render.Validate(*opts.MessageTemplate); err != nil {
				return domain.NotificationRule{}, fmt.Errorf("message template: %w", err)
			}
			rule.MessageTemplate = opts.MessageTemplate
		}
	}
	if opts.IsActive != nil {
		rule.IsActive = *opts.IsActive
	}
	var recipients []domain.RuleRecipient
	if opts.Recipients != nil {
		recipients, err = e.buildRecipients(ctx, *opts.Recipients)
		if err != nil {
			return domain.NotificationRule{}, err
		}
		for i := range recipients {
			recipients[i].RuleID = rule.ID
		}
	}
	rule.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.NotificationRule{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRuleTx(ctx, tx, rule); err != nil {
		return domain.NotificationRule{}, err
	}
	if opts.Recipients != nil {
		if err := e.Repo.ReplaceRecipientsTx(ctx, tx, rule.ID, recipients); err != nil {
			return domain.NotificationRule{}, err
		}
		rule.Recipients = recipients
	}
	if err := e.Events.Append(ctx, tx, "rule.updated", "rule", rule.ID, opts.ActorID, events.EventPayload{
		"trigger_status": rule.TriggerStatus,
		"is_active":      rule.IsActive,
	}); err != nil {
		return domain.NotificationRule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.NotificationRule{}, err
	}
	return rule, nil
}

func (e *Engine) DeleteRule(ctx context.Context, id, actorID string) error {
	if err := e.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteRuleTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rule.deleted", "rule", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateUser registers a user with optional roles.
func (e *Engine) CreateUser(ctx context.Context, id, displayName string, roles []string, actorID string) (domain.User, error) {
	if id == "" {
		return domain.User{}, errors.New("id is required")
	}
	if displayName == "" {
		displayName = id
	}
	for _, role := range roles {
		if e.Config != nil && !e.Config.KnownRole(role) {
			return domain.User{}, fmt.Errorf("unknown role %s", role)
		}
	}
	u := domain.User{
		ID:          id,
		DisplayName: displayName,
		IsActive:    true,
		Roles:       roles,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUserTx(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.created", "user", u.ID, actorID, events.EventPayload{"display_name": u.DisplayName}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e *Engine) GrantRole(ctx context.Context, userID, roleID, actorID string) error {
	if e.Config != nil && !e.Config.KnownRole(roleID) {
		return fmt.Errorf("unknown role %s", roleID)
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.GrantRoleTx(ctx, tx, userID, roleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "user.role.granted", "user", userID, actorID, events.EventPayload{"role_id": roleID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) RevokeRole(ctx context.Context, userID, roleID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.RevokeRoleTx(ctx, tx, userID, roleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "user.role.revoked", "user", userID, actorID, events.EventPayload{"role_id": roleID}); err != nil {
		return err
	}
	return tx.Commit()
}

// MintAPIKey creates an API key for a user and returns the raw secret once.
func (e *Engine) MintAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := uuid.NewString() + uuid.NewString()
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, raw, nil
}
