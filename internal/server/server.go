package server

import (
	"bytes"
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/wolfeidau/casekeeper/internal/assignment"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/directory"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/workload"
)

// Server exposes the directory, assignment and audit services over Connect.
type Server struct {
	directory   *directory.Service
	assignments *assignment.Manager
	audit       *audit.Recorder
}

// NewServer creates a new server over the engine services.
func NewServer(dir *directory.Service, assignments *assignment.Manager, recorder *audit.Recorder) *Server {
	return &Server{
		directory:   dir,
		assignments: assignments,
		audit:       recorder,
	}
}

// Config selects the role registry and identity cache used by NewFromStores.
type Config struct {
	// Registry defaults to auth.DefaultRegistry.
	Registry *auth.Registry
	Resolver auth.ResolverConfig
}

// NewFromStores wires the engine, balancer, audit recorder and services over stores.
func NewFromStores(stores *store.Stores, cfg Config) *Server {
	registry := cfg.Registry
	if registry == nil {
		registry = auth.DefaultRegistry()
	}

	engine := auth.NewEngine(auth.NewResolver(stores.Staff, cfg.Resolver), auth.NewRegistryHolder(registry))
	recorder := audit.NewRecorder(stores.Audit, engine)
	balancer := workload.NewBalancer(stores.Organizations, stores.Staff, stores.Clients)

	return NewServer(
		directory.NewService(engine, stores, balancer, recorder),
		assignment.NewManager(engine, stores, balancer, recorder),
		recorder,
	)
}

// Handler returns the HTTP handler for the server. The caller is expected to place
// authentication middleware in front of it so the subject is on the request context.
func (s *Server) Handler(interceptors ...connect.Interceptor) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	opts := []connect.HandlerOption{
		connect.WithCodec(Codec{}),
		connect.WithInterceptors(interceptors...),
	}

	s.registerDirectory(mux, opts)
	s.registerAssignment(mux, opts)
	s.registerAudit(mux, opts)

	return mux
}

type unaryFunc[Req, Res any] func(ctx context.Context, subjectID string, req *Req) (*Res, error)

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn unaryFunc[Req, Res], opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, auth.SubjectFromContext(ctx), req.Msg)
			if err != nil {
				return nil, toConnectError(ctx, err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	))
}

func (s *Server) registerDirectory(mux *http.ServeMux, opts []connect.HandlerOption) {
	d := s.directory

	handle(mux, DirectoryServiceGetUserProcedure, func(ctx context.Context, subject string, req *GetUserRequest) (*UserResponse, error) {
		user, err := d.GetUser(ctx, subject, req.UserID)
		if err != nil {
			return nil, err
		}
		return &UserResponse{User: user}, nil
	}, opts)

	handle(mux, DirectoryServiceListUsersProcedure, func(ctx context.Context, subject string, req *ListUsersRequest) (*ListUsersResponse, error) {
		users, err := d.ListUsers(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &ListUsersResponse{Users: users}, nil
	}, opts)

	handle(mux, DirectoryServiceCreateUserProcedure, func(ctx context.Context, subject string, req *CreateUserRequest) (*UserResponse, error) {
		user, err := d.CreateUser(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &UserResponse{User: user}, nil
	}, opts)

	handle(mux, DirectoryServiceUpdateUserProcedure, func(ctx context.Context, subject string, req *UpdateUserRequest) (*UserResponse, error) {
		user, err := d.UpdateUser(ctx, subject, req.UserID, req.UpdateUserInput)
		if err != nil {
			return nil, err
		}
		return &UserResponse{User: user}, nil
	}, opts)

	handle(mux, DirectoryServiceArchiveUserProcedure, func(ctx context.Context, subject string, req *ArchiveUserRequest) (*UserResponse, error) {
		user, err := d.ArchiveUser(ctx, subject, req.UserID)
		if err != nil {
			return nil, err
		}
		return &UserResponse{User: user}, nil
	}, opts)

	handle(mux, DirectoryServiceCreateOrganizationProcedure, func(ctx context.Context, subject string, req *CreateOrganizationRequest) (*OrganizationResponse, error) {
		org, err := d.CreateOrganization(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &OrganizationResponse{Organization: org}, nil
	}, opts)

	handle(mux, DirectoryServiceGetOrganizationProcedure, func(ctx context.Context, subject string, req *GetOrganizationRequest) (*OrganizationResponse, error) {
		org, err := d.GetOrganization(ctx, subject, req.OrgID)
		if err != nil {
			return nil, err
		}
		return &OrganizationResponse{Organization: org}, nil
	}, opts)

	handle(mux, DirectoryServiceUpdateOrganizationProcedure, func(ctx context.Context, subject string, req *UpdateOrganizationRequest) (*OrganizationResponse, error) {
		org, err := d.UpdateOrganization(ctx, subject, req.OrgID, req.UpdateOrganizationInput)
		if err != nil {
			return nil, err
		}
		return &OrganizationResponse{Organization: org}, nil
	}, opts)

	handle(mux, DirectoryServiceListOrganizationsProcedure, func(ctx context.Context, subject string, req *ListOrganizationsRequest) (*ListOrganizationsResponse, error) {
		orgs, err := d.ListOrganizations(ctx, subject, req.Status)
		if err != nil {
			return nil, err
		}
		return &ListOrganizationsResponse{Organizations: orgs}, nil
	}, opts)

	handle(mux, DirectoryServiceDeleteOrganizationProcedure, func(ctx context.Context, subject string, req *DeleteOrganizationRequest) (*Empty, error) {
		if err := d.DeleteOrganization(ctx, subject, req.OrgID); err != nil {
			return nil, err
		}
		return &Empty{}, nil
	}, opts)

	handle(mux, DirectoryServiceCreateClientProcedure, func(ctx context.Context, subject string, req *CreateClientRequest) (*ClientResponse, error) {
		client, err := d.CreateClient(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &ClientResponse{Client: client}, nil
	}, opts)

	handle(mux, DirectoryServiceGetClientProcedure, func(ctx context.Context, subject string, req *GetClientRequest) (*ClientResponse, error) {
		client, err := d.GetClient(ctx, subject, req.ClientID)
		if err != nil {
			return nil, err
		}
		return &ClientResponse{Client: client}, nil
	}, opts)

	handle(mux, DirectoryServiceListClientsProcedure, func(ctx context.Context, subject string, req *ListClientsRequest) (*ListClientsResponse, error) {
		clients, err := d.ListClients(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &ListClientsResponse{Clients: clients}, nil
	}, opts)

	handle(mux, DirectoryServiceUpdateClientProcedure, func(ctx context.Context, subject string, req *UpdateClientRequest) (*ClientResponse, error) {
		client, err := d.UpdateClient(ctx, subject, req.ClientID, req.UpdateClientInput)
		if err != nil {
			return nil, err
		}
		return &ClientResponse{Client: client}, nil
	}, opts)

	handle(mux, DirectoryServiceListRolesProcedure, func(ctx context.Context, subject string, _ *ListRolesRequest) (*ListRolesResponse, error) {
		roles, err := d.ListRoles(ctx, subject)
		if err != nil {
			return nil, err
		}
		return &ListRolesResponse{Roles: roles}, nil
	}, opts)

	handle(mux, DirectoryServiceUpdateRolePermissionsProcedure, func(ctx context.Context, subject string, req *UpdateRolePermissionsRequest) (*RoleResponse, error) {
		role, err := d.UpdateRolePermissions(ctx, subject, req.Role, req.Permissions)
		if err != nil {
			return nil, err
		}
		return &RoleResponse{Role: role}, nil
	}, opts)

	handle(mux, DirectoryServiceGetWorkerLoadProcedure, func(ctx context.Context, subject string, req *GetWorkerLoadRequest) (*GetWorkerLoadResponse, error) {
		workers, err := d.GetWorkerLoad(ctx, subject, req.OrgID)
		if err != nil {
			return nil, err
		}
		return &GetWorkerLoadResponse{Workers: workers}, nil
	}, opts)
}

func (s *Server) registerAssignment(mux *http.ServeMux, opts []connect.HandlerOption) {
	m := s.assignments

	handle(mux, AssignmentServiceAssignClientProcedure, func(ctx context.Context, subject string, req *AssignClientRequest) (*AssignClientResponse, error) {
		return m.AssignClient(ctx, subject, req.ClientID, req.WorkerID)
	}, opts)

	handle(mux, AssignmentServiceBulkAssignProcedure, func(ctx context.Context, subject string, req *BulkAssignRequest) (*BulkAssignResponse, error) {
		return m.BulkAssign(ctx, subject, req.OrgID)
	}, opts)

	handle(mux, AssignmentServiceCreateAppointmentProcedure, func(ctx context.Context, subject string, req *CreateAppointmentRequest) (*AppointmentResponse, error) {
		appt, err := m.CreateAppointment(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &AppointmentResponse{Appointment: appt}, nil
	}, opts)

	handle(mux, AssignmentServiceListAppointmentsProcedure, func(ctx context.Context, subject string, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
		appts, err := m.ListAppointments(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &ListAppointmentsResponse{Appointments: appts}, nil
	}, opts)
}

func (s *Server) registerAudit(mux *http.ServeMux, opts []connect.HandlerOption) {
	r := s.audit

	handle(mux, AuditServiceListAuditLogsProcedure, func(ctx context.Context, subject string, req *ListAuditLogsRequest) (*ListAuditLogsResponse, error) {
		entries, err := r.List(ctx, subject, *req)
		if err != nil {
			return nil, err
		}
		return &ListAuditLogsResponse{Entries: entries}, nil
	}, opts)

	handle(mux, AuditServiceExportAuditLogsProcedure, func(ctx context.Context, subject string, req *ExportAuditLogsRequest) (*ExportAuditLogsResponse, error) {
		format := req.Format
		if format == "" {
			format = audit.ExportFormatJSON
		}

		var buf bytes.Buffer
		n, err := r.Export(ctx, subject, req.Query, audit.ExportOptions{Format: format, Compress: req.Compress}, &buf)
		if err != nil {
			return nil, err
		}
		return &ExportAuditLogsResponse{
			Format:     format,
			Compressed: req.Compress,
			Count:      n,
			Data:       buf.Bytes(),
		}, nil
	}, opts)
}
