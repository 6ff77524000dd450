// Package lifecycle coordinates the user-removal cascade. Each step is
// best effort so a failure mid-cascade still converges toward a removed
// user, and the outcome is recorded in user_cleanup_audit.
package lifecycle

import (
	"context"
	"log/slog"

	"vibedb/internal/domain"
	"vibedb/internal/pgrole"
	"vibedb/internal/pool"
	"vibedb/internal/storage/postgres"
	"vibedb/internal/vault"
)

// Cleanup types accepted by RemoveUser.
const (
	CleanupFull            = "full_removal"
	CleanupPGUsersOnly     = "pg_users_only"
	CleanupPermissionsOnly = "permissions_only"
)

// Coordinator runs removal cascades.
type Coordinator struct {
	store *postgres.Store
	vault *vault.Vault
	pools *pool.Registry
	roles *pgrole.Manager
	log   *slog.Logger
}

// New creates a coordinator.
func New(store *postgres.Store, v *vault.Vault, pools *pool.Registry, roles *pgrole.Manager, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, vault: v, pools: pools, roles: roles, log: log}
}

// adminConnString builds an admin connection URL for one database on a
// registered server, decrypting the stored admin password.
func (c *Coordinator) adminConnString(server *domain.DatabaseServer, database string) (string, error) {
	password, err := c.vault.Decrypt(server.AdminPasswordEncrypted)
	if err != nil {
		return "", err
	}
	return pool.AdminConnString(server, password, database), nil
}

// activeServer returns the first active registered server. Native role
// drops are skipped with a warning when no server is registered.
func (c *Coordinator) activeServer(ctx context.Context) (*domain.DatabaseServer, error) {
	servers, err := c.store.Servers().List(ctx)
	if err != nil {
		return nil, err
	}
	for _, server := range servers {
		if server.IsActive {
			return server, nil
		}
	}
	return nil, domain.ErrServerNotFound
}

// RemoveUser runs the full cascade for one user and returns what it
// deleted. Order: native roles first, then catalog mirrors, then the user
// row, then the cleanup audit.
func (c *Coordinator) RemoveUser(ctx context.Context, userID, performedBy domain.UserID, cleanupType string) (*domain.CleanupStats, error) {
	if cleanupType == "" {
		cleanupType = CleanupFull
	}

	user, err := c.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &domain.CleanupStats{DatabasesAffected: []string{}}

	assignments, err := c.store.Assignments().ListByUser(ctx, userID)
	if err != nil {
		c.log.Warn("failed to list assignments during removal", "user_id", userID, "error", err)
	}
	seen := make(map[string]struct{})
	for _, assignment := range assignments {
		if _, ok := seen[assignment.DatabaseName]; !ok {
			seen[assignment.DatabaseName] = struct{}{}
			stats.DatabasesAffected = append(stats.DatabasesAffected, assignment.DatabaseName)
		}
	}

	// Native roles go first: once the catalog rows are gone there is no
	// record of which roles to drop.
	pgUsers, err := c.store.PGUsers().ListByUser(ctx, userID)
	if err != nil {
		c.log.Warn("failed to list pg users during removal", "user_id", userID, "error", err)
	}
	if len(pgUsers) > 0 {
		server, err := c.activeServer(ctx)
		if err != nil {
			c.log.Warn("no active server for native role drops; catalog rows will still be removed",
				"user_id", userID, "error", err)
		} else {
			for _, record := range pgUsers {
				connStr, err := c.adminConnString(server, record.DatabaseName)
				if err != nil {
					c.log.Warn("failed to build admin connection string",
						"database", record.DatabaseName, "error", err)
					continue
				}
				if err := c.roles.DropPGUser(ctx, userID, record.DatabaseName, connStr); err != nil {
					c.log.Warn("failed to drop native role",
						"user_id", userID, "database", record.DatabaseName, "error", err)
					continue
				}
				stats.PGUsersDropped++
			}
		}
	}

	if cleanupType == CleanupPGUsersOnly {
		c.pools.InvalidateUser(userID)
		c.recordCleanup(ctx, user, performedBy, cleanupType, stats)
		return stats, nil
	}

	if n, err := c.store.TablePermissions().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("table permission cleanup skipped", "user_id", userID, "error", err)
	} else {
		stats.TablePermissionsRevoked = n
	}

	if n, err := c.store.SchemaPermissions().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("schema permission cleanup skipped", "user_id", userID, "error", err)
	} else {
		stats.SchemaPermissionsRevoked = n
	}

	if cleanupType == CleanupPermissionsOnly {
		if n, err := c.store.RLSPolicies().DeleteByUser(ctx, userID); err != nil {
			c.log.Warn("rls policy cleanup skipped", "user_id", userID, "error", err)
		} else {
			stats.RLSPoliciesDropped = n
		}
		c.recordCleanup(ctx, user, performedBy, cleanupType, stats)
		return stats, nil
	}

	if n, err := c.store.Assignments().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("assignment cleanup skipped", "user_id", userID, "error", err)
	} else {
		stats.AssignmentsRemoved = n
	}

	if _, err := c.store.Audit().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("audit log cleanup skipped", "user_id", userID, "error", err)
	}

	if n, err := c.store.APIKeys().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("api key cleanup skipped", "user_id", userID, "error", err)
	} else {
		stats.APIKeysDeleted = n
	}

	// Remaining role records whose native drop failed above.
	if _, err := c.store.PGUsers().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("pg user record cleanup skipped", "user_id", userID, "error", err)
	}

	if n, err := c.store.RLSPolicies().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("rls policy cleanup skipped", "user_id", userID, "error", err)
	} else {
		stats.RLSPoliciesDropped = n
	}

	if err := c.store.Passwords().DeleteByUser(ctx, userID); err != nil {
		c.log.Warn("password record cleanup skipped", "user_id", userID, "error", err)
	}

	c.pools.InvalidateUser(userID)

	if err := c.store.Users().Delete(ctx, userID); err != nil {
		return nil, err
	}

	c.recordCleanup(ctx, user, performedBy, cleanupType, stats)

	c.log.Info("user removed",
		"user_id", userID, "email", user.Email,
		"performed_by", performedBy, "cleanup_type", cleanupType,
		"pg_users_dropped", stats.PGUsersDropped,
		"assignments_removed", stats.AssignmentsRemoved)
	return stats, nil
}

// recordCleanup writes the cleanup audit row. A failure here never masks a
// completed cleanup.
func (c *Coordinator) recordCleanup(ctx context.Context, user *domain.User, performedBy domain.UserID, cleanupType string, stats *domain.CleanupStats) {
	err := c.store.Audit().InsertCleanup(ctx, &domain.UserCleanupAudit{
		UserID:      user.ID,
		UserEmail:   user.Email,
		CleanupType: cleanupType,
		PerformedBy: performedBy,
		Stats:       *stats,
	})
	if err != nil {
		c.log.Warn("failed to record cleanup audit", "user_id", user.ID, "error", err)
	}
}
