package rbac

import "errors"

var (
	// ErrForbidden is returned by Require when the decision is Deny.
	ErrForbidden = errors.New("no access")

	// ErrUnknownPermission means the permission is not in the catalog.
	ErrUnknownPermission = errors.New("unknown permission")

	// ErrProjectRequired means a project permission was checked without a
	// project. This is a bug in the caller.
	ErrProjectRequired = errors.New("project permission checked without a project")

	// ErrUserNotFound means the caller identity does not resolve to a user.
	ErrUserNotFound = errors.New("user not found")

	// ErrImmutableRole is returned when a built-in role would be changed.
	ErrImmutableRole = errors.New("role is immutable")

	// ErrLastOwner is returned when a change would leave a project without
	// an owner.
	ErrLastOwner = errors.New("the project must have at least one owner")

	// ErrRoleScopeMismatch is returned when a global role is used where a
	// project role is expected, or the other way around.
	ErrRoleScopeMismatch = errors.New("role scope mismatch")
)
