package domain

// DefaultGroupID exists at startup before any client joins.
const DefaultGroupID = "bigGroup"

// Group is a named broadcast domain. Membership is transient and lives in
// the runtime registry, never on the Group itself.
type Group struct {
	ID   string
	Name string
}
