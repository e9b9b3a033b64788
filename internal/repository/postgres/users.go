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

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves the tenant columns of a user. A NULL user_type becomes UNKNOWN.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	stmt, args, err := r.builder.Select("id", "tenant_id::text", "user_type", "product_scope").
		From("users").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user         domain.User
		tenantID     sql.NullString
		userType     sql.NullString
		productScope sql.NullString
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&user.ID, &tenantID, &userType, &productScope); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if tenantID.Valid && tenantID.String != "" {
		user.TenantID = &tenantID.String
	}
	if productScope.Valid && productScope.String != "" {
		user.ProductScope = &productScope.String
	}
	user.UserType = domain.ParseUserType(userType.String)

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
