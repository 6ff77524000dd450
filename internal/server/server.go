// Package server exposes the HTTP control and data plane.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vibedb/internal/audit"
	"vibedb/internal/auth"
	"vibedb/internal/authz"
	"vibedb/internal/config"
	"vibedb/internal/dispatch"
	"vibedb/internal/domain"
	"vibedb/internal/grants"
	"vibedb/internal/lifecycle"
	"vibedb/internal/logger"
	"vibedb/internal/notify"
	"vibedb/internal/pgrole"
	"vibedb/internal/pool"
	"vibedb/internal/storage/postgres"
	"vibedb/internal/vault"
)

// Server wires the components behind the HTTP mux.
type Server struct {
	cfg config.Config
	log *logger.Logger

	store      *postgres.Store
	vault      *vault.Vault
	authn      *auth.Authenticator
	authorizer *authz.Authorizer
	pools      *pool.Registry
	roles      *pgrole.Manager
	grants     *grants.Materializer
	dispatcher *dispatch.Dispatcher
	lifecycle  *lifecycle.Coordinator
	recorder   *audit.Recorder
	notifier   notify.Notifier

	httpServer *http.Server

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// Deps bundles the constructed components.
type Deps struct {
	Config     config.Config
	Log        *logger.Logger
	Store      *postgres.Store
	Vault      *vault.Vault
	Authn      *auth.Authenticator
	Authorizer *authz.Authorizer
	Pools      *pool.Registry
	Roles      *pgrole.Manager
	Grants     *grants.Materializer
	Dispatcher *dispatch.Dispatcher
	Lifecycle  *lifecycle.Coordinator
	Recorder   *audit.Recorder
	Notifier   notify.Notifier
	Registry   *prometheus.Registry
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		log:        deps.Log,
		store:      deps.Store,
		vault:      deps.Vault,
		authn:      deps.Authn,
		authorizer: deps.Authorizer,
		pools:      deps.Pools,
		roles:      deps.Roles,
		grants:     deps.Grants,
		dispatcher: deps.Dispatcher,
		lifecycle:  deps.Lifecycle,
		recorder:   deps.Recorder,
		notifier:   deps.Notifier,
	}
	s.requestsTotal, s.requestDuration = newRequestMetrics(deps.Registry)

	mux := http.NewServeMux()
	s.routes(mux, deps.Registry)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:           s.withRequest(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// Handlers enforce their own per-query deadlines; this is the
		// backstop for a wedged connection.
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, reg *prometheus.Registry) {
	// Unauthenticated surface.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("POST /api/auth/request-password-reset", s.handleRequestPasswordReset)
	mux.HandleFunc("POST /api/auth/reset-password", s.handleResetPassword)

	// Authenticated identity surface.
	mux.HandleFunc("POST /api/auth/validate", s.authenticated(s.handleAuthValidate))
	mux.HandleFunc("GET /api/auth/permissions", s.authenticated(s.handleAuthPermissions))

	// Admin surface.
	mux.HandleFunc("GET /api/admin/users", s.authenticated(s.handleListUsers))
	mux.HandleFunc("POST /api/admin/users", s.authenticated(s.handleCreateUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.authenticated(s.handleDeleteUser))
	mux.HandleFunc("POST /api/admin/users/{id}/activate", s.authenticated(s.handleActivateUser))
	mux.HandleFunc("POST /api/admin/users/{id}/deactivate", s.authenticated(s.handleDeactivateUser))
	mux.HandleFunc("GET /api/admin/users/{id}/databases", s.authenticated(s.handleListUserDatabases))

	mux.HandleFunc("GET /api/admin/api-keys", s.authenticated(s.handleListAPIKeys))
	mux.HandleFunc("POST /api/admin/api-keys", s.authenticated(s.handleCreateAPIKey))
	mux.HandleFunc("POST /api/admin/api-keys/{id}/revoke", s.authenticated(s.handleRevokeAPIKey))

	mux.HandleFunc("GET /api/admin/database-servers", s.authenticated(s.handleListServers))
	mux.HandleFunc("POST /api/admin/database-servers", s.authenticated(s.handleCreateServer))
	mux.HandleFunc("PUT /api/admin/database-servers/{id}", s.authenticated(s.handleUpdateServer))
	mux.HandleFunc("DELETE /api/admin/database-servers/{id}", s.authenticated(s.handleDeleteServer))
	mux.HandleFunc("GET /api/admin/database-servers/{id}/databases", s.authenticated(s.handleListServerDatabases))
	mux.HandleFunc("GET /api/admin/database-servers/{id}/connection-string", s.authenticated(s.handleServerConnectionString))

	mux.HandleFunc("GET /api/admin/database-assignments", s.authenticated(s.handleListAssignments))
	mux.HandleFunc("POST /api/admin/database-assignments", s.authenticated(s.handleCreateAssignment))
	mux.HandleFunc("DELETE /api/admin/database-assignments", s.authenticated(s.handleDeleteAssignment))

	mux.HandleFunc("GET /api/admin/permissions", s.authenticated(s.handleListSchemaPermissions))
	mux.HandleFunc("POST /api/admin/permissions", s.authenticated(s.handleGrantSchema))
	mux.HandleFunc("DELETE /api/admin/permissions", s.authenticated(s.handleRevokeSchema))

	mux.HandleFunc("GET /api/admin/table-permissions", s.authenticated(s.handleListTablePermissions))
	mux.HandleFunc("POST /api/admin/table-permissions", s.authenticated(s.handleGrantTable))
	mux.HandleFunc("DELETE /api/admin/table-permissions", s.authenticated(s.handleRevokeTable))

	mux.HandleFunc("GET /api/admin/rls-policies", s.authenticated(s.handleListRLSPolicies))
	mux.HandleFunc("POST /api/admin/rls-policies", s.authenticated(s.handleCreateRLSPolicy))
	mux.HandleFunc("DELETE /api/admin/rls-policies/{id}", s.authenticated(s.handleDropRLSPolicy))
	mux.HandleFunc("GET /api/admin/rls-policy-templates", s.authenticated(s.handleListRLSTemplates))

	mux.HandleFunc("GET /api/admin/pg-users", s.authenticated(s.handleListPGUsers))
	mux.HandleFunc("POST /api/admin/pg-users", s.authenticated(s.handleCreatePGUser))
	mux.HandleFunc("DELETE /api/admin/pg-users", s.authenticated(s.handleDropPGUser))
	mux.HandleFunc("POST /api/admin/pg-users/reset-password", s.authenticated(s.handleResetPGPassword))

	mux.HandleFunc("POST /api/admin/remove-user", s.authenticated(s.handleRemoveUser))

	// Data plane.
	mux.HandleFunc("GET /api/tables", s.authenticated(s.handleListTables))
	mux.HandleFunc("POST /api/tables", s.authenticated(s.handleCreateTable))
	mux.HandleFunc("GET /api/tables/{table}", s.authenticated(s.handleDescribeTable))
	mux.HandleFunc("DELETE /api/tables/{table}", s.authenticated(s.handleDropTable))

	mux.HandleFunc("GET /api/data/{schema}/{table}", s.authenticated(s.handleSelectRows))
	mux.HandleFunc("POST /api/data/{schema}/{table}", s.authenticated(s.handleInsertRow))
	mux.HandleFunc("PUT /api/data/{schema}/{table}", s.authenticated(s.handleUpdateRows))
	mux.HandleFunc("DELETE /api/data/{schema}/{table}", s.authenticated(s.handleDeleteRows))

	mux.HandleFunc("POST /api/query", s.authenticated(s.handleRawQuery))
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// resolveAdminConn builds an admin connection string for database using the
// named server, or the first active server when serverID is empty.
func (s *Server) resolveAdminConn(ctx context.Context, serverID, database string) (string, error) {
	var server *domain.DatabaseServer
	var err error
	if serverID != "" {
		server, err = s.store.Servers().Get(ctx, domain.ServerID(serverID))
		if err != nil {
			return "", err
		}
	} else {
		servers, err := s.store.Servers().List(ctx)
		if err != nil {
			return "", err
		}
		for _, candidate := range servers {
			if candidate.IsActive {
				server = candidate
				break
			}
		}
		if server == nil {
			return "", domain.ErrServerNotFound
		}
	}

	password, err := s.vault.Decrypt(server.AdminPasswordEncrypted)
	if err != nil {
		return "", err
	}
	return pool.AdminConnString(server, password, database), nil
}

// record writes an audit entry for the finished request.
func (s *Server) record(r *http.Request, rc *reqContext, database, schema, table, op string, status int, errMsg string, body map[string]any) {
	entry := &domain.AuditEntry{
		Endpoint:        r.URL.Path,
		Method:          r.Method,
		DatabaseName:    database,
		SchemaName:      schema,
		TableName:       table,
		Operation:       op,
		RequestBody:     body,
		ResponseStatus:  status,
		ErrorMessage:    errMsg,
		ExecutionTimeMS: time.Since(rc.start).Milliseconds(),
	}
	if rc.identity != nil {
		entry.UserID = rc.identity.UserID
		entry.APIKeyID = rc.identity.KeyID
	}
	s.recorder.Record(entry)
}
