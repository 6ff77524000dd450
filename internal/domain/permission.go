package domain

import "time"

// SchemaPermissionLevel is a logical grant level at schema granularity.
type SchemaPermissionLevel string

const (
	// PermissionReadOnly allows read-class operations.
	PermissionReadOnly SchemaPermissionLevel = "read_only"

	// PermissionReadWrite allows read and write operations.
	PermissionReadWrite SchemaPermissionLevel = "read_write"
)

// IsValid returns true if the level is valid.
func (p SchemaPermissionLevel) IsValid() bool {
	return p == PermissionReadOnly || p == PermissionReadWrite
}

// SchemaPermission is a logical grant on one schema of one database.
// Unique per (user, database, schema).
type SchemaPermission struct {
	ID           string
	UserID       UserID
	DatabaseName string
	SchemaName   string
	Permission   SchemaPermissionLevel
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableVerbs is the set of table-level privileges expressible in a grant.
type TableVerbs struct {
	Select     bool
	Insert     bool
	Update     bool
	Delete     bool
	Truncate   bool
	References bool
	Trigger    bool
}

// List returns the enabled verbs in GRANT statement order.
func (v TableVerbs) List() []string {
	var verbs []string
	if v.Select {
		verbs = append(verbs, "SELECT")
	}
	if v.Insert {
		verbs = append(verbs, "INSERT")
	}
	if v.Update {
		verbs = append(verbs, "UPDATE")
	}
	if v.Delete {
		verbs = append(verbs, "DELETE")
	}
	if v.Truncate {
		verbs = append(verbs, "TRUNCATE")
	}
	if v.References {
		verbs = append(verbs, "REFERENCES")
	}
	if v.Trigger {
		verbs = append(verbs, "TRIGGER")
	}
	return verbs
}

// Empty reports whether no verb is enabled.
func (v TableVerbs) Empty() bool {
	return len(v.List()) == 0
}

// TablePermission is a logical grant at table and column granularity,
// mirrored from a native GRANT. ColumnPermissions maps column name to the
// verbs granted on that column. Unique per (user, database, schema, table).
type TablePermission struct {
	ID                string
	VibeUserID        UserID
	DatabaseName      string
	SchemaName        string
	TableName         string
	Verbs             TableVerbs
	ColumnPermissions map[string][]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
