package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users       *UserRepository
	Roles       *RoleRepository
	Permissions *PermissionRepository
}

// NewRepositories wires all repositories backed by db, normally a *pgxpool.Pool.
func NewRepositories(db pgDB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Roles:       NewRoleRepository(db),
		Permissions: NewPermissionRepository(db),
	}
}
