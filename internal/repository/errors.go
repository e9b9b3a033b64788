package repository

import "errors"

// ErrNotFound is returned by store adapters when a user, role or permission row does not exist.
var ErrNotFound = errors.New("repository: record not found")
