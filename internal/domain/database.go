package domain

import (
	"strings"
	"time"
)

// MasterDatabase is the catalog database. It holds every table in this
// package and must never be assignable or grantable to any user.
const MasterDatabase = "master_db"

// IsMasterDatabase reports whether name refers to the catalog database,
// case-insensitively.
func IsMasterDatabase(name string) bool {
	return strings.EqualFold(name, MasterDatabase)
}

// ServerID is a unique identifier for a registered database server.
type ServerID string

// String returns the string representation.
func (id ServerID) String() string {
	return string(id)
}

// DatabaseServer is a registered PostgreSQL cluster. Its admin credentials
// are the source of superuser access for role and grant materialization;
// the password is stored only as vault ciphertext.
type DatabaseServer struct {
	ID                     ServerID
	ServerName             string
	Host                   string
	Port                   int
	AdminUsername          string
	AdminPasswordEncrypted string
	SSLMode                string
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// AssignmentID is a unique identifier for a database assignment.
type AssignmentID string

// String returns the string representation.
func (id AssignmentID) String() string {
	return string(id)
}

// DatabaseAssignment grants a user access to one target database through a
// pre-scoped connection string, stored encrypted. Unique per
// (user, database).
type DatabaseAssignment struct {
	ID                        AssignmentID
	UserID                    UserID
	DatabaseName              string
	ConnectionStringEncrypted string
	IsActive                  bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}
