package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository"
)

// RoleRepository reads roles and user role assignments.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a role regardless of status.
func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*domain.Role, error) {
	stmt, args, err := r.builder.Select("id", "name", "description", "level", "tenant_id::text", "status").
		From("rbac_roles").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}

	var (
		role        domain.Role
		description sql.NullString
		tenantID    sql.NullString
		status      string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&role.ID, &role.Name, &description, &role.Level, &tenantID, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}

	if description.Valid {
		role.Description = &description.String
	}
	if tenantID.Valid && tenantID.String != "" {
		role.TenantID = &tenantID.String
	}
	role.Status = domain.RoleStatus(status)

	return &role, nil
}

// MaxLevelByUser returns the highest level across the user's active roles, or 0.
func (r *RoleRepository) MaxLevelByUser(ctx context.Context, userID int64) (int, error) {
	stmt, args, err := r.builder.Select("COALESCE(MAX(r.level), 0)").
		From("rbac_user_roles ur").
		Join("rbac_roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		Where(squirrel.Eq{"r.status": string(domain.RoleStatusActive)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build max level sql: %w", err)
	}

	var level int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&level); err != nil {
		return 0, fmt.Errorf("query max level: %w", err)
	}
	return level, nil
}

// ListUserIDs returns the users holding the role.
func (r *RoleRepository) ListUserIDs(ctx context.Context, roleID int64) ([]int64, error) {
	stmt, args, err := r.builder.Select("user_id").
		From("rbac_user_roles").
		Where(squirrel.Eq{"role_id": roleID}).
		OrderBy("user_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list role users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role users: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role user: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role users: %w", err)
	}

	return userIDs, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
