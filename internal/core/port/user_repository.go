package port

import (
	"context"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

// UserRepository exposes the user columns needed for tenant resolution.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
