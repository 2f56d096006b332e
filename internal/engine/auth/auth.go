package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// ForbiddenError indicates a missing role.
type ForbiddenError struct {
	Role string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s required", e.Role)
}

// Service provides role checks backed by SQL.
type Service struct {
	DB *sql.DB
}

// UserHasRole reports whether an active user holds the role.
func (s Service) UserHasRole(ctx context.Context, userID, roleID string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT 1 FROM user_roles ur
JOIN users u ON u.id=ur.user_id
WHERE ur.user_id=? AND ur.role_id=? AND u.is_active=1 LIMIT 1`,
		userID, roleID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
