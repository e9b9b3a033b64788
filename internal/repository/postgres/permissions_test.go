package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository"
)

const (
	lockRoleSQL    = `SELECT id FROM rbac_roles WHERE id = \$1 FOR UPDATE`
	listKeysSQL    = `SELECT action_id, route_id FROM rbac_permissions WHERE role_id = \$1`
	deleteRoleSQL  = `DELETE FROM rbac_permissions WHERE role_id = \$1`
	insertPermsSQL = `INSERT INTO rbac_permissions .* ON CONFLICT \(role_id, action_id, route_id\) DO UPDATE`
)

func TestPermissionRepository_ListRequirements(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT p\.id, p\.role_id, p\.action_id, p\.route_id, r\.level, p\.min_role_level FROM rbac_permissions p JOIN rbac_roles r ON r\.id = p\.role_id WHERE p\.id IN \(\$1,\$2\)`).
		WithArgs(int64(11), int64(15)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "role_id", "action_id", "route_id", "level", "min_role_level"}).
			AddRow(int64(11), int64(3), int64(1), int64(1), 60, nil).
			AddRow(int64(15), int64(3), int64(3), int64(1), 60, int64(85)))

	reqs, err := NewPermissionRepository(mock).ListRequirements(context.Background(), []int64{11, 15})
	if err != nil {
		t.Fatalf("ListRequirements returned error: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].MinRoleLevel != nil || reqs[0].RequiredLevel() != 60 {
		t.Fatalf("unexpected first requirement %+v", reqs[0])
	}
	if reqs[1].MinRoleLevel == nil || reqs[1].RequiredLevel() != 85 {
		t.Fatalf("unexpected second requirement %+v", reqs[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ListRequirementsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	reqs, err := NewPermissionRepository(mock).ListRequirements(context.Background(), nil)
	if err != nil || reqs != nil {
		t.Fatalf("expected no query for empty ids, got %v %v", reqs, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_HasGrantedPermission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)
	checkSQL := `SELECT 1 FROM rbac_user_roles ur JOIN rbac_roles r ON r\.id = ur\.role_id AND r\.status = \$1 .* WHERE ur\.user_id = \$2 AND p\.granted = \$3 AND a\.name = \$4 AND rt\.path = \$5 AND rt\.method = \$6 LIMIT 1`

	mock.ExpectQuery(checkSQL).
		WithArgs("active", int64(3), true, "read", "/api/v1/invoices", "GET").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(checkSQL).
		WithArgs("active", int64(3), true, "delete", "/api/v1/invoices", "DELETE").
		WillReturnError(pgx.ErrNoRows)

	allowed, err := repo.HasGrantedPermission(context.Background(), 3, "read", "/api/v1/invoices", "")
	if err != nil || !allowed {
		t.Fatalf("expected grant, got %v %v", allowed, err)
	}
	allowed, err = repo.HasGrantedPermission(context.Background(), 3, "delete", "/api/v1/invoices", "DELETE")
	if err != nil || allowed {
		t.Fatalf("expected denial without error, got %v %v", allowed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lockRoleSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(listKeysSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"action_id", "route_id"}).AddRow(int64(1), int64(4)))
	mock.ExpectExec(deleteRoleSQL).WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(insertPermsSQL).
		WithArgs(int64(5), int64(1), int64(1), true, int64(5), int64(2), int64(1), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	result, err := NewPermissionRepository(mock).ReplaceForRole(context.Background(), 5, []domain.PermissionGrant{
		{RoleID: 5, ActionID: 1, RouteID: 1, Granted: true},
		{RoleID: 5, ActionID: 2, RouteID: 1, Granted: true},
	})
	if err != nil {
		t.Fatalf("ReplaceForRole returned error: %v", err)
	}
	if result.Assigned != 2 {
		t.Fatalf("expected 2 assigned, got %d", result.Assigned)
	}
	if len(result.Previous) != 1 || result.Previous[0] != (domain.PermissionKey{ActionID: 1, RouteID: 4}) {
		t.Fatalf("unexpected previous keys %+v", result.Previous)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRoleClearAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lockRoleSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(listKeysSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"action_id", "route_id"}))
	mock.ExpectExec(deleteRoleSQL).WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	result, err := NewPermissionRepository(mock).ReplaceForRole(context.Background(), 5, nil)
	if err != nil {
		t.Fatalf("ReplaceForRole returned error: %v", err)
	}
	if result.Assigned != 0 || len(result.Previous) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRoleRollsBackOnInsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	insertErr := errors.New("insert failed")
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lockRoleSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(listKeysSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"action_id", "route_id"}).AddRow(int64(1), int64(4)))
	mock.ExpectExec(deleteRoleSQL).WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(insertPermsSQL).
		WithArgs(int64(5), int64(1), int64(1), true).
		WillReturnError(insertErr)
	mock.ExpectRollback()

	_, err = NewPermissionRepository(mock).ReplaceForRole(context.Background(), 5, []domain.PermissionGrant{
		{RoleID: 5, ActionID: 1, RouteID: 1, Granted: true},
	})
	if !errors.Is(err, insertErr) {
		t.Fatalf("expected insert error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRoleMissingRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lockRoleSQL).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = NewPermissionRepository(mock).ReplaceForRole(context.Background(), 404, nil)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ReplaceForRoleRetriesSerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lockRoleSQL).WithArgs(int64(5)).
		WillReturnError(&pgconn.PgError{Code: sqlStateSerializationFailure, Message: "could not serialize access"})
	mock.ExpectRollback()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(lockRoleSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(listKeysSQL).WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"action_id", "route_id"}))
	mock.ExpectExec(deleteRoleSQL).WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(insertPermsSQL).
		WithArgs(int64(5), int64(2), int64(1), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := NewPermissionRepository(mock).ReplaceForRole(context.Background(), 5, []domain.PermissionGrant{
		{RoleID: 5, ActionID: 2, RouteID: 1, Granted: true},
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Assigned != 1 {
		t.Fatalf("expected 1 assigned, got %d", result.Assigned)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
