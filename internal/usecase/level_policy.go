package usecase

// LevelPolicy holds the authority thresholds of the role hierarchy.
type LevelPolicy struct {
	EnterpriseAdminLevel int
	SuperAdminLevel      int
	// GlobalRoleLevel is the level at and above which a role is not owned by any tenant.
	GlobalRoleLevel int
	// SharedRoleMinLevel is required to modify a role that has no tenant and is below GlobalRoleLevel.
	SharedRoleMinLevel int
	// SuperAdminCrossTenant lets Super Admins modify tenant-owned roles of any tenant.
	SuperAdminCrossTenant bool
}

// DefaultLevelPolicy returns the stock hierarchy: 100 / 90 / 90 / 80, Super Admins semi-global.
func DefaultLevelPolicy() LevelPolicy {
	return LevelPolicy{
		EnterpriseAdminLevel:  100,
		SuperAdminLevel:       90,
		GlobalRoleLevel:       90,
		SharedRoleMinLevel:    80,
		SuperAdminCrossTenant: true,
	}
}

// IsGlobalRole reports whether a role at level escapes tenant ownership.
func (p LevelPolicy) IsGlobalRole(level int) bool {
	return level >= p.GlobalRoleLevel
}

// IsEnterpriseLevel reports whether level reaches the Enterprise Admin threshold.
func (p LevelPolicy) IsEnterpriseLevel(level int) bool {
	return level >= p.EnterpriseAdminLevel
}
