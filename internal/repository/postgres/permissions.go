package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository"
)

const permissionConflictClause = "ON CONFLICT (role_id, action_id, route_id) DO UPDATE SET granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at"

// PermissionRepository implements port.PermissionRepository over PostgreSQL.
type PermissionRepository struct {
	db      pgDB
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(db pgDB) *PermissionRepository {
	return &PermissionRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListRequirements loads the requested permissions with the level of their owning role.
func (r *PermissionRepository) ListRequirements(ctx context.Context, ids []int64) ([]domain.PermissionRequirement, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt, args, err := r.builder.Select("p.id", "p.role_id", "p.action_id", "p.route_id", "r.level", "p.min_role_level").
		From("rbac_permissions p").
		Join("rbac_roles r ON r.id = p.role_id").
		Where(squirrel.Eq{"p.id": ids}).
		OrderBy("p.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission requirements sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permission requirements: %w", err)
	}
	defer rows.Close()

	var reqs []domain.PermissionRequirement
	for rows.Next() {
		var (
			req      domain.PermissionRequirement
			minLevel sql.NullInt32
		)
		if err := rows.Scan(&req.PermissionID, &req.RoleID, &req.ActionID, &req.RouteID, &req.RoleLevel, &minLevel); err != nil {
			return nil, fmt.Errorf("scan permission requirement: %w", err)
		}
		if minLevel.Valid {
			lvl := int(minLevel.Int32)
			req.MinRoleLevel = &lvl
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission requirements: %w", err)
	}

	return reqs, nil
}

// ListByRole returns the role's permissions joined with action and route.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID int64) ([]domain.RolePermissionView, error) {
	stmt, args, err := r.builder.Select("p.id", "p.granted", "a.name", "rt.path", "rt.name", "rt.method").
		From("rbac_permissions p").
		Join("rbac_actions a ON a.id = p.action_id").
		Join("rbac_routes rt ON rt.id = p.route_id").
		Where(squirrel.Eq{"p.role_id": roleID}).
		OrderBy("rt.path ASC", "a.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list role permissions sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()

	var views []domain.RolePermissionView
	for rows.Next() {
		var (
			view      domain.RolePermissionView
			routeName sql.NullString
		)
		if err := rows.Scan(&view.PermissionID, &view.Granted, &view.ActionName, &view.RoutePath, &routeName, &view.RouteMethod); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		view.RouteName = routeName.String
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role permissions: %w", err)
	}

	return views, nil
}

// ListGrantedByUser returns the distinct granted route/method/action triples of the user's active roles.
func (r *PermissionRepository) ListGrantedByUser(ctx context.Context, userID int64) ([]domain.UserPermissionView, error) {
	stmt, args, err := r.userGrants(userID).
		Columns("rt.path", "rt.method", "a.name", "p.granted").
		Distinct().
		OrderBy("rt.path ASC", "rt.method ASC", "a.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list user permissions sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user permissions: %w", err)
	}
	defer rows.Close()

	var views []domain.UserPermissionView
	for rows.Next() {
		var view domain.UserPermissionView
		if err := rows.Scan(&view.RoutePath, &view.RouteMethod, &view.ActionName, &view.Granted); err != nil {
			return nil, fmt.Errorf("scan user permission: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user permissions: %w", err)
	}

	return views, nil
}

// HasGrantedPermission reports whether any active role of the user grants action on the route.
func (r *PermissionRepository) HasGrantedPermission(ctx context.Context, userID int64, action, routePath, method string) (bool, error) {
	if method == "" {
		method = http.MethodGet
	}
	stmt, args, err := r.userGrants(userID).
		Columns("1").
		Where(squirrel.Eq{"a.name": action}).
		Where(squirrel.Eq{"rt.path": routePath}).
		Where(squirrel.Eq{"rt.method": method}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build permission check sql: %w", err)
	}

	var one int
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query permission check: %w", err)
	}
	return true, nil
}

// userGrants selects from the granted permissions reachable through the user's active roles.
func (r *PermissionRepository) userGrants(userID int64) squirrel.SelectBuilder {
	return r.builder.Select().
		From("rbac_user_roles ur").
		Join("rbac_roles r ON r.id = ur.role_id AND r.status = ?", string(domain.RoleStatusActive)).
		Join("rbac_permissions p ON p.role_id = r.id").
		Join("rbac_actions a ON a.id = p.action_id").
		Join("rbac_routes rt ON rt.id = p.route_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		Where(squirrel.Eq{"p.granted": true})
}

// ReplaceForRole deletes every permission of the role and inserts grants in one
// SERIALIZABLE transaction. The role row is locked first so concurrent replacements
// of the same role run one after the other.
func (r *PermissionRepository) ReplaceForRole(ctx context.Context, roleID int64, grants []domain.PermissionGrant) (domain.ReplaceResult, error) {
	var result domain.ReplaceResult

	err := runSerializable(ctx, r.db, func(tx pgx.Tx) error {
		result = domain.ReplaceResult{}

		if err := r.lockRole(ctx, tx, roleID); err != nil {
			return err
		}

		previous, err := r.listKeys(ctx, tx, roleID)
		if err != nil {
			return err
		}
		result.Previous = previous

		stmt, args, err := r.builder.Delete("rbac_permissions").
			Where(squirrel.Eq{"role_id": roleID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete role permissions sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete role permissions: %w", err)
		}

		if len(grants) == 0 {
			return nil
		}

		insert := r.builder.Insert("rbac_permissions").
			Columns("role_id", "action_id", "route_id", "granted", "updated_at")
		for _, grant := range grants {
			insert = insert.Values(roleID, grant.ActionID, grant.RouteID, grant.Granted, squirrel.Expr("NOW()"))
		}
		stmt, args, err = insert.Suffix(permissionConflictClause).ToSql()
		if err != nil {
			return fmt.Errorf("build insert role permissions sql: %w", err)
		}
		tag, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("insert role permissions: %w", err)
		}
		result.Assigned = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return domain.ReplaceResult{}, err
	}

	return result, nil
}

func (r *PermissionRepository) lockRole(ctx context.Context, tx pgx.Tx, roleID int64) error {
	stmt, args, err := r.builder.Select("id").
		From("rbac_roles").
		Where(squirrel.Eq{"id": roleID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock role sql: %w", err)
	}

	var id int64
	if err := tx.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lock role: %w", err)
	}
	return nil
}

func (r *PermissionRepository) listKeys(ctx context.Context, tx pgx.Tx, roleID int64) ([]domain.PermissionKey, error) {
	stmt, args, err := r.builder.Select("action_id", "route_id").
		From("rbac_permissions").
		Where(squirrel.Eq{"role_id": roleID}).
		OrderBy("action_id ASC", "route_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permission keys sql: %w", err)
	}

	rows, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permission keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.PermissionKey
	for rows.Next() {
		var key domain.PermissionKey
		if err := rows.Scan(&key.ActionID, &key.RouteID); err != nil {
			return nil, fmt.Errorf("scan permission key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission keys: %w", err)
	}
	return keys, nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
