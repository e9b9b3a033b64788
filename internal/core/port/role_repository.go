package port

import (
	"context"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

// RoleRepository reads roles and role assignments.
type RoleRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Role, error)
	// MaxLevelByUser returns the highest level across the user's active roles, or 0 when none.
	MaxLevelByUser(ctx context.Context, userID int64) (int, error)
	ListUserIDs(ctx context.Context, roleID int64) ([]int64, error)
}
