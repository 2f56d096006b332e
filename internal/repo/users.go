package repo

import (
	"context"
	"database/sql"

	"alertline/internal/domain"
)

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,display_name,is_active,created_at) VALUES (?,?,?,?)`,
		u.ID, u.DisplayName, boolInt(u.IsActive), u.CreatedAt)
	if err != nil {
		return err
	}
	for _, role := range u.Roles {
		if err := r.GrantRoleTx(ctx, tx, u.ID, role); err != nil {
			return err
		}
	}
	return nil
}

// EnsureUser inserts a minimal user row if missing.
func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, userID, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(id,display_name,is_active,created_at) VALUES (?,?,1,?)`, userID, userID, now)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,display_name,is_active,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.DisplayName, &active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.IsActive = active != 0
	u.Roles, err = r.UserRoles(ctx, u.ID)
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,display_name,is_active,created_at FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var active int
		if err := rows.Scan(&u.ID, &u.DisplayName, &active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.IsActive = active != 0
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Roles, err = r.UserRoles(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_active=? WHERE id=?`, boolInt(active), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GrantRoleTx(ctx context.Context, tx *sql.Tx, userID, roleID string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO user_roles(user_id,role_id) VALUES (?,?)`, userID, roleID)
	return err
}

func (r Repo) RevokeRoleTx(ctx context.Context, tx *sql.Tx, userID, roleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=? AND role_id=?`, userID, roleID)
	return err
}

func (r Repo) UserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role_id FROM user_roles WHERE user_id=? ORDER BY role_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UserHasRole reports whether an active user holds the role.
func (r Repo) UserHasRole(ctx context.Context, userID, roleID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM user_roles ur JOIN users u ON u.id=ur.user_id WHERE ur.user_id=? AND ur.role_id=? AND u.is_active=1`, userID, roleID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActiveUserIDsWithRole returns ids of all active users holding the role.
func (r Repo) ActiveUserIDsWithRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT u.id FROM users u JOIN user_roles ur ON ur.user_id=u.id WHERE ur.role_id=? AND u.is_active=1 ORDER BY u.id ASC`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserDisplayName resolves a display name. An empty or unknown user id
// resolves to "", a known user without a display name to the raw id.
func (r Repo) UserDisplayName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	var name string
	err := r.DB.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id=?`, userID).Scan(&name)
	if err != nil {
		return ""
	}
	if name == "" {
		return userID
	}
	return name
}
