package rbac

const (
	PermTake       = "ujian:take"
	PermCreate     = "ujian:create"
	PermViewOwn    = "attempt:view-own"
	PermViewAll    = "attempt:view-all"
	PermAbandonAny = "attempt:abandon-any"
)

// Default policy.
var RolePermissions = map[string][]string{
	"student": {
		PermTake,
		PermViewOwn,
	},
	"teacher": {
		PermCreate,
		PermViewOwn,
		PermViewAll,
		PermAbandonAny,
	},
	"admin": {
		"*", // everything
	},
}
