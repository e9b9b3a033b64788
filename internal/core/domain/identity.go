package domain

// UserType classifies how a user relates to tenants.
type UserType string

const (
	UserTypeEnterpriseAdmin UserType = "ENTERPRISE_ADMIN"
	UserTypeSuperAdmin      UserType = "SUPER_ADMIN"
	UserTypeUser            UserType = "USER"
	// UserTypeUnknown is assigned to users stored without a type. They carry no authority.
	UserTypeUnknown UserType = "UNKNOWN"
)

// IsGlobal reports whether the type is a platform-level actor with no single tenant.
func (t UserType) IsGlobal() bool {
	return t == UserTypeEnterpriseAdmin || t == UserTypeSuperAdmin
}

// ParseUserType normalises a stored or hinted user type. Empty input yields UserTypeUnknown.
func ParseUserType(raw string) UserType {
	switch UserType(raw) {
	case UserTypeEnterpriseAdmin, UserTypeSuperAdmin, UserTypeUser:
		return UserType(raw)
	default:
		return UserTypeUnknown
	}
}

// User mirrors the columns of the users table the authorization engine reads.
type User struct {
	ID           int64
	TenantID     *string
	UserType     UserType
	ProductScope *string
}

// UserTenantInfo describes the tenant scope of an actor.
type UserTenantInfo struct {
	TenantID     *string
	IsGlobal     bool
	UserType     UserType
	ProductScope *string
}

// RoleTenantInfo describes the tenant ownership of a role. IsGlobalRole is derived
// from the role level and ignores any stored tenant.
type RoleTenantInfo struct {
	RoleID       int64
	TenantID     *string
	IsGlobalRole bool
	RoleName     string
	Level        int
}

// ActorContext carries identity hints supplied by the authentication layer. Any
// field that is set is authoritative and replaces a store lookup.
type ActorContext struct {
	UserType *UserType
	TenantID *string
	Level    *int
}

// TenantString renders an optional tenant identifier for logs and metrics.
func TenantString(tenantID *string) string {
	if tenantID == nil || *tenantID == "" {
		return "none"
	}
	return *tenantID
}
