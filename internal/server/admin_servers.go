package server

import (
	"encoding/json"
	"net/http"
	"time"

	"vibedb/internal/domain"
	"vibedb/internal/pool"
)

type serverRequest struct {
	ServerName    string `json:"server_name"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
	SSLMode       string `json:"ssl_mode"`
	IsActive      *bool  `json:"is_active"`
}

type serverResponse struct {
	ID            domain.ServerID `json:"id"`
	ServerName    string          `json:"server_name"`
	Host          string          `json:"host"`
	Port          int             `json:"port"`
	AdminUsername string          `json:"admin_username"`
	SSLMode       string          `json:"ssl_mode"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toServerResponse(srv *domain.DatabaseServer) serverResponse {
	// The admin password never leaves the catalog, even encrypted.
	return serverResponse{
		ID:            srv.ID,
		ServerName:    srv.ServerName,
		Host:          srv.Host,
		Port:          srv.Port,
		AdminUsername: srv.AdminUsername,
		SSLMode:       srv.SSLMode,
		IsActive:      srv.IsActive,
		CreatedAt:     srv.CreatedAt,
	}
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	servers, err := s.store.Servers().List(r.Context())
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	out := make([]serverResponse, 0, len(servers))
	for _, srv := range servers {
		out = append(out, toServerResponse(srv))
	}
	s.ok(w, rc, http.StatusOK, out, nil)
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.ServerName == "" || req.Host == "" || req.AdminUsername == "" || req.AdminPassword == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request",
			"server_name, host, admin_username, and admin_password are required")
		return
	}

	encrypted, err := s.vault.Encrypt(req.AdminPassword)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	port := req.Port
	if port == 0 {
		port = 5432
	}
	sslMode := req.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	srv := &domain.DatabaseServer{
		ServerName:             req.ServerName,
		Host:                   req.Host,
		Port:                   port,
		AdminUsername:          req.AdminUsername,
		AdminPasswordEncrypted: encrypted,
		SSLMode:                sslMode,
		IsActive:               true,
	}
	if err := s.store.Servers().Create(r.Context(), srv); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "create_server", http.StatusCreated, "", map[string]any{
		"server_name": req.ServerName, "host": req.Host,
	})
	s.ok(w, rc, http.StatusCreated, toServerResponse(srv), nil)
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	serverID := domain.ServerID(r.PathValue("id"))

	srv, err := s.store.Servers().Get(r.Context(), serverID)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	var req serverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if req.ServerName != "" {
		srv.ServerName = req.ServerName
	}
	if req.Host != "" {
		srv.Host = req.Host
	}
	if req.Port != 0 {
		srv.Port = req.Port
	}
	if req.AdminUsername != "" {
		srv.AdminUsername = req.AdminUsername
	}
	if req.AdminPassword != "" {
		encrypted, err := s.vault.Encrypt(req.AdminPassword)
		if err != nil {
			s.fail(w, rc, err, nil)
			return
		}
		srv.AdminPasswordEncrypted = encrypted
	}
	if req.SSLMode != "" {
		srv.SSLMode = req.SSLMode
	}
	if req.IsActive != nil {
		srv.IsActive = *req.IsActive
	}

	if err := s.store.Servers().Update(r.Context(), srv); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "update_server", http.StatusOK, "", map[string]any{"server_id": serverID})
	s.ok(w, rc, http.StatusOK, toServerResponse(srv), nil)
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	serverID := domain.ServerID(r.PathValue("id"))

	if err := s.store.Servers().Delete(r.Context(), serverID); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.record(r, rc, "", "", "", "delete_server", http.StatusOK, "", map[string]any{"server_id": serverID})
	s.ok(w, rc, http.StatusOK, map[string]any{"server_id": serverID, "deleted": true}, nil)
}

// handleServerConnectionString returns the admin connection string for a
// database on the named server. master_db is refused; the catalog is never
// reachable through the data plane.
func (s *Server) handleServerConnectionString(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	serverID := r.PathValue("id")

	database := r.URL.Query().Get("database_name")
	if database == "" {
		s.failMsg(w, rc, http.StatusBadRequest, "invalid_request", "database_name is required")
		return
	}
	if domain.IsMasterDatabase(database) {
		s.fail(w, rc, domain.ErrMasterDBForbidden, nil)
		return
	}

	srv, err := s.store.Servers().Get(r.Context(), domain.ServerID(serverID))
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	connStr, err := s.resolveAdminConn(r.Context(), serverID, database)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.ok(w, rc, http.StatusOK, map[string]any{
		"connection_string": connStr,
		"host":              srv.Host,
		"port":              srv.Port,
		"username":          srv.AdminUsername,
	}, nil)
}

// handleListServerDatabases connects with the server's admin credentials
// and lists its non-template databases. master_db is omitted because it is
// never assignable.
func (s *Server) handleListServerDatabases(w http.ResponseWriter, r *http.Request) {
	rc := requestContext(r)
	serverID := r.PathValue("id")

	connStr, err := s.resolveAdminConn(r.Context(), serverID, "postgres")
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	conn, err := pool.AdminConnect(r.Context(), connStr)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	defer conn.Close(r.Context())

	rows, err := conn.Query(r.Context(),
		`SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname`)
	if err != nil {
		s.fail(w, rc, err, nil)
		return
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			s.fail(w, rc, err, nil)
			return
		}
		if domain.IsMasterDatabase(name) {
			continue
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		s.fail(w, rc, err, nil)
		return
	}

	s.ok(w, rc, http.StatusOK, map[string]any{"databases": databases}, nil)
}
