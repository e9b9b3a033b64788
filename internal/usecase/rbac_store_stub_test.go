package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository"
)

type stubRoleRepository struct {
	mu        sync.Mutex
	roles     map[int64]domain.Role
	levels    map[int64]int
	roleUsers map[int64][]int64
	errors    struct {
		get   error
		level error
		users error
	}
	levelCalls int
}

func (s *stubRoleRepository) GetByID(_ context.Context, id int64) (*domain.Role, error) {
	if s.errors.get != nil {
		return nil, s.errors.get
	}
	role, ok := s.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (s *stubRoleRepository) MaxLevelByUser(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	s.levelCalls++
	s.mu.Unlock()
	if s.errors.level != nil {
		return 0, s.errors.level
	}
	return s.levels[userID], nil
}

func (s *stubRoleRepository) ListUserIDs(_ context.Context, roleID int64) ([]int64, error) {
	if s.errors.users != nil {
		return nil, s.errors.users
	}
	return s.roleUsers[roleID], nil
}

type stubUserRepository struct {
	mu    sync.Mutex
	users map[int64]domain.User
	err   error
	calls int
}

func (s *stubUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

// stubPermissionStore keeps role permission sets in memory and applies replace-all
// the way the transactional store does: all or nothing.
type stubPermissionStore struct {
	mu        sync.Mutex
	catalog   map[int64]domain.PermissionRequirement
	rolePerms map[int64][]domain.PermissionKey
	granted   map[string]bool
	errors    struct {
		list    error
		replace error
		has     error
	}
	onReplace    func()
	afterHas     func()
	replaceCalls int
	hasCalls     int
	lastMethod   string
}

func grantedKey(userID int64, action, path, method string) string {
	return fmt.Sprintf("%d|%s", userID, DecisionKey(action, method, path))
}

func (s *stubPermissionStore) ListRequirements(_ context.Context, ids []int64) ([]domain.PermissionRequirement, error) {
	if s.errors.list != nil {
		return nil, s.errors.list
	}
	var out []domain.PermissionRequirement
	for _, id := range ids {
		if req, ok := s.catalog[id]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *stubPermissionStore) ListByRole(_ context.Context, roleID int64) ([]domain.RolePermissionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RolePermissionView
	for _, key := range s.rolePerms[roleID] {
		out = append(out, domain.RolePermissionView{
			PermissionID: key.ActionID*100 + key.RouteID,
			Granted:      true,
			ActionName:   fmt.Sprintf("action-%d", key.ActionID),
			RoutePath:    fmt.Sprintf("/route/%d", key.RouteID),
			RouteMethod:  "GET",
		})
	}
	return out, nil
}

func (s *stubPermissionStore) ListGrantedByUser(_ context.Context, _ int64) ([]domain.UserPermissionView, error) {
	if s.errors.list != nil {
		return nil, s.errors.list
	}
	return []domain.UserPermissionView{{RoutePath: "/api/v1/invoices", RouteMethod: "GET", ActionName: "read", Granted: true}}, nil
}

func (s *stubPermissionStore) HasGrantedPermission(_ context.Context, userID int64, action, routePath, method string) (bool, error) {
	s.mu.Lock()
	s.hasCalls++
	s.lastMethod = method
	if s.errors.has != nil {
		s.mu.Unlock()
		return false, s.errors.has
	}
	granted := s.granted[grantedKey(userID, action, routePath, method)]
	hook := s.afterHas
	s.mu.Unlock()

	// Runs after the row was read, before the caller sees it.
	if hook != nil {
		hook()
	}
	return granted, nil
}

func (s *stubPermissionStore) ReplaceForRole(_ context.Context, roleID int64, grants []domain.PermissionGrant) (domain.ReplaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.onReplace != nil {
		s.onReplace()
	}
	if s.errors.replace != nil {
		return domain.ReplaceResult{}, s.errors.replace
	}
	if s.rolePerms == nil {
		s.rolePerms = make(map[int64][]domain.PermissionKey)
	}
	previous := append([]domain.PermissionKey(nil), s.rolePerms[roleID]...)
	next := make([]domain.PermissionKey, 0, len(grants))
	for _, grant := range grants {
		next = append(next, grant.Key())
	}
	s.rolePerms[roleID] = next
	return domain.ReplaceResult{Previous: previous, Assigned: len(next)}, nil
}

func (s *stubPermissionStore) keys(roleID int64) []domain.PermissionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := append([]domain.PermissionKey(nil), s.rolePerms[roleID]...)
	sortKeys(keys)
	return keys
}

type recordingMetrics struct {
	mu              sync.Mutex
	levelViolations []domain.RoleLevelViolation
	crossTenant     []domain.CrossTenantViolation
	invalidations   map[string]int
	changes         []domain.PermissionChange
	auditErrors     int
	checks          map[bool]int
	checkErrors     map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		invalidations: make(map[string]int),
		checks:        make(map[bool]int),
		checkErrors:   make(map[string]int),
	}
}

func (m *recordingMetrics) RecordRoleLevelViolation(v domain.RoleLevelViolation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelViolations = append(m.levelViolations, v)
}

func (m *recordingMetrics) RecordCrossTenantViolation(v domain.CrossTenantViolation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crossTenant = append(m.crossTenant, v)
}

func (m *recordingMetrics) RecordCacheInvalidation(_, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations[result]++
}

func (m *recordingMetrics) RecordPermissionChange(c domain.PermissionChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
}

func (m *recordingMetrics) RecordAuditLogError(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditErrors++
}

func (m *recordingMetrics) ObservePermissionCheck(cacheHit bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[cacheHit]++
}

func (m *recordingMetrics) RecordPermissionCheckError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkErrors[errorType]++
}

type recordedAudit struct {
	eventType string
	event     domain.SecurityEvent
}

type stubAuditLogger struct {
	mu     sync.Mutex
	events []recordedAudit
	err    error
	calls  int
}

func (s *stubAuditLogger) LogSecurityEvent(_ context.Context, eventType string, event domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, recordedAudit{eventType: eventType, event: event})
	return nil
}

type stubRoleInvalidator struct {
	mu    sync.Mutex
	roles []int64
	err   error
	calls int
}

func (s *stubRoleInvalidator) InvalidateRole(ctx context.Context, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.roles = append(s.roles, roleID)
	return nil
}

type stubDecisionCache struct {
	mu          sync.Mutex
	entries     map[int64]map[string]bool
	generations map[int64]int64
	err         error
	getCalls    int
	setCalls    int
	staleWrites int
}

func (s *stubDecisionCache) GetDecision(_ context.Context, userID int64, key string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.err != nil {
		return false, false, s.err
	}
	allowed, ok := s.entries[userID][key]
	return allowed, ok, nil
}

func (s *stubDecisionCache) Snapshot(_ context.Context, userID int64) (port.DecisionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return port.DecisionToken{}, s.err
	}
	return port.DecisionToken{Shared: s.generations[userID]}, nil
}

func (s *stubDecisionCache) SetDecision(_ context.Context, userID int64, key string, allowed bool, token port.DecisionToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.err != nil {
		return false, s.err
	}
	if s.generations[userID] != token.Shared {
		s.staleWrites++
		return false, nil
	}
	if s.entries == nil {
		s.entries = make(map[int64]map[string]bool)
	}
	if s.entries[userID] == nil {
		s.entries[userID] = make(map[string]bool)
	}
	s.entries[userID][key] = allowed
	return true, nil
}

func (s *stubDecisionCache) InvalidateUsers(_ context.Context, userIDs ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.generations == nil {
		s.generations = make(map[int64]int64)
	}
	for _, id := range userIDs {
		delete(s.entries, id)
		s.generations[id]++
	}
	return nil
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func userTypePtr(v domain.UserType) *domain.UserType { return &v }

// Fixture ids. Tenants are "t-a" and "t-b".
const (
	userEnterprise   int64 = 1
	userSuper        int64 = 2
	userTenantA50    int64 = 3
	userNoRole       int64 = 4
	userTenantA80    int64 = 5
	userUntyped      int64 = 6
	userNoTenant     int64 = 7
	userTenantA60    int64 = 8

	roleRegional     int64 = 1 // level 95, no tenant
	roleTenantB      int64 = 2 // level 40, t-b
	roleAccountant   int64 = 3 // level 60, t-a
	roleEnterprise   int64 = 4 // level 100, no tenant
	roleClerk        int64 = 5 // level 30, t-a
	roleShared       int64 = 6 // level 50, no tenant
	roleSupervisor   int64 = 7 // level 70, t-a
	roleMissing      int64 = 999

	permInvoiceRead  int64 = 11 // from accountant
	permInvoiceWrite int64 = 12 // from accountant
	permTenantBRead  int64 = 13 // from tenant b role
	permEnterprise   int64 = 14 // from enterprise role
	permElevated     int64 = 15 // from accountant, min level 85
	permClerkRead    int64 = 16 // from clerk
)

type engineFixture struct {
	roles       *stubRoleRepository
	users       *stubUserRepository
	perms       *stubPermissionStore
	metrics     *recordingMetrics
	audit       *stubAuditLogger
	invalidator *stubRoleInvalidator
	scopes      *TenantScopeResolver
	tenants     *TenantScopeValidator
	levels      *RoleLevelValidator
	svc         *PermissionAssignmentService
}

func newEngineFixture(t *testing.T, policy LevelPolicy) *engineFixture {
	t.Helper()

	roles := &stubRoleRepository{
		roles: map[int64]domain.Role{
			roleRegional:   {ID: roleRegional, Name: "Regional Director", Level: 95, Status: domain.RoleStatusActive},
			roleTenantB:    {ID: roleTenantB, Name: "Tenant B Staff", Level: 40, TenantID: strPtr("t-b"), Status: domain.RoleStatusActive},
			roleAccountant: {ID: roleAccountant, Name: "Accountant", Level: 60, TenantID: strPtr("t-a"), Status: domain.RoleStatusActive},
			roleEnterprise: {ID: roleEnterprise, Name: "Enterprise Admin", Level: 100, Status: domain.RoleStatusActive},
			roleClerk:      {ID: roleClerk, Name: "Clerk", Level: 30, TenantID: strPtr("t-a"), Status: domain.RoleStatusActive},
			roleShared:     {ID: roleShared, Name: "Shared Operator", Level: 50, Status: domain.RoleStatusActive},
			roleSupervisor: {ID: roleSupervisor, Name: "Supervisor", Level: 70, TenantID: strPtr("t-a"), Status: domain.RoleStatusActive},
		},
		levels: map[int64]int{
			userEnterprise: 100,
			userSuper:      90,
			userTenantA50:  50,
			userNoRole:     0,
			userTenantA80:  80,
			userUntyped:    70,
			userNoTenant:   60,
			userTenantA60:  60,
		},
		roleUsers: map[int64][]int64{roleClerk: {userTenantA50}},
	}
	users := &stubUserRepository{users: map[int64]domain.User{
		userEnterprise: {ID: userEnterprise, UserType: domain.UserTypeEnterpriseAdmin},
		userSuper:      {ID: userSuper, UserType: domain.UserTypeSuperAdmin, ProductScope: strPtr("finance")},
		userTenantA50:  {ID: userTenantA50, UserType: domain.UserTypeUser, TenantID: strPtr("t-a")},
		userNoRole:     {ID: userNoRole, UserType: domain.UserTypeUser, TenantID: strPtr("t-a")},
		userTenantA80:  {ID: userTenantA80, UserType: domain.UserTypeUser, TenantID: strPtr("t-a")},
		userUntyped:    {ID: userUntyped, UserType: domain.UserTypeUnknown, TenantID: strPtr("t-a")},
		userNoTenant:   {ID: userNoTenant, UserType: domain.UserTypeUser},
		userTenantA60:  {ID: userTenantA60, UserType: domain.UserTypeUser, TenantID: strPtr("t-a")},
	}}
	perms := &stubPermissionStore{
		catalog: map[int64]domain.PermissionRequirement{
			permInvoiceRead:  {PermissionID: permInvoiceRead, RoleID: roleAccountant, ActionID: 1, RouteID: 1, RoleLevel: 60},
			permInvoiceWrite: {PermissionID: permInvoiceWrite, RoleID: roleAccountant, ActionID: 2, RouteID: 1, RoleLevel: 60},
			permTenantBRead:  {PermissionID: permTenantBRead, RoleID: roleTenantB, ActionID: 1, RouteID: 2, RoleLevel: 40},
			permEnterprise:   {PermissionID: permEnterprise, RoleID: roleEnterprise, ActionID: 3, RouteID: 3, RoleLevel: 100},
			permElevated:     {PermissionID: permElevated, RoleID: roleAccountant, ActionID: 3, RouteID: 1, RoleLevel: 60, MinRoleLevel: intPtr(85)},
			permClerkRead:    {PermissionID: permClerkRead, RoleID: roleClerk, ActionID: 1, RouteID: 4, RoleLevel: 30},
		},
	}

	logger := zaptest.NewLogger(t)
	metrics := newRecordingMetrics()
	audit := &stubAuditLogger{}
	invalidator := &stubRoleInvalidator{}

	levelResolver := NewRoleLevelResolver(roles)
	scopes := NewTenantScopeResolver(users, roles, policy)
	tenants := NewTenantScopeValidator(scopes, levelResolver, policy, logger).WithMetrics(metrics)
	levels := NewRoleLevelValidator(levelResolver, perms, logger).WithMetrics(metrics)
	svc := NewPermissionAssignmentService(tenants, levels, perms, logger).
		WithInvalidator(invalidator).
		WithAuditLogger(audit).
		WithMetrics(metrics)
	svc.effects.interval = time.Millisecond

	return &engineFixture{
		roles:       roles,
		users:       users,
		perms:       perms,
		metrics:     metrics,
		audit:       audit,
		invalidator: invalidator,
		scopes:      scopes,
		tenants:     tenants,
		levels:      levels,
		svc:         svc,
	}
}
