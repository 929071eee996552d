package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/siteqa/handlers"
	"p9e.in/siteqa/middleware"
	"p9e.in/siteqa/ratelimit"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(limiter ratelimit.Limiter) http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/register", handlers.Register).Methods("POST")
	r.HandleFunc("/login", handlers.Login).Methods("POST")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(ratelimit.Middleware(limiter))
	api.Use(middleware.JWTMiddleware)

	api.HandleFunc("/profile", handlers.GetCurrentUser).Methods("GET")
	api.HandleFunc("/orgs", handlers.CreateOrganization).Methods("POST")
	api.HandleFunc("/orgs", handlers.ListMyOrganizations).Methods("GET")

	// =====================================================
	// Organization-scoped routes (membership resolved per request)
	// =====================================================
	org := api.PathPrefix("/orgs/{orgId}").Subrouter()
	org.Use(middleware.OrgMembership)

	registerMemberRoutes(org)
	registerProjectRoutes(org)
	registerNCRRoutes(org)
	registerITPRoutes(org)
	registerReportRoutes(org)

	return r
}

func registerMemberRoutes(org *mux.Router) {
	members := org.PathPrefix("/members").Subrouter()
	members.Handle("", middleware.RequirePermission("member:manage")(
		http.HandlerFunc(handlers.AddOrganizationMember))).Methods("POST")
	members.Handle("", middleware.RequirePermission("member:read")(
		http.HandlerFunc(handlers.ListOrganizationMembers))).Methods("GET")
	members.Handle("/{memberId}", middleware.RequirePermission("member:manage")(
		http.HandlerFunc(handlers.UpdateMemberRole))).Methods("PUT")

	contractors := org.PathPrefix("/contractors").Subrouter()
	contractors.Handle("", middleware.RequirePermission("member:manage")(
		http.HandlerFunc(handlers.CreateContractor))).Methods("POST")
	contractors.Handle("", middleware.RequirePermission("member:read")(
		http.HandlerFunc(handlers.ListContractors))).Methods("GET")
}

func registerProjectRoutes(org *mux.Router) {
	projects := org.PathPrefix("/projects").Subrouter()
	projects.Handle("", middleware.RequirePermission("project:create")(
		http.HandlerFunc(handlers.CreateProject))).Methods("POST")
	projects.Handle("", middleware.RequirePermission("project:read")(
		http.HandlerFunc(handlers.ListProjects))).Methods("GET")
	projects.Handle("/{projectId}", middleware.RequirePermission("project:read")(
		http.HandlerFunc(handlers.GetProject))).Methods("GET")

	projects.Handle("/{projectId}/lots", middleware.RequirePermission("lot:create")(
		http.HandlerFunc(handlers.CreateLot))).Methods("POST")
	projects.Handle("/{projectId}/lots", middleware.RequirePermission("lot:read")(
		http.HandlerFunc(handlers.ListLots))).Methods("GET")

	projects.Handle("/{projectId}/ncrs", middleware.RequirePermission("ncr:create")(
		http.HandlerFunc(handlers.CreateNCR))).Methods("POST")
}

func registerNCRRoutes(org *mux.Router) {
	ncrs := org.PathPrefix("/ncrs").Subrouter()
	ncrs.Handle("", middleware.RequirePermission("ncr:read")(
		http.HandlerFunc(handlers.ListNCRs))).Methods("GET")
	ncrs.Handle("/stats", middleware.RequirePermission("ncr:read")(
		http.HandlerFunc(handlers.GetNCRStats))).Methods("GET")
	ncrs.Handle("/{ncrId}", middleware.RequirePermission("ncr:read")(
		http.HandlerFunc(handlers.GetNCR))).Methods("GET")
	ncrs.Handle("/{ncrId}/history", middleware.RequirePermission("ncr:read")(
		http.HandlerFunc(handlers.GetNCRHistory))).Methods("GET")
	ncrs.Handle("/{ncrId}/assign", middleware.RequirePermission("ncr:assign")(
		http.HandlerFunc(handlers.AssignNCR))).Methods("POST")

	// Lifecycle transitions. The route gate is coarse (ncr:update); the state
	// machine applies the per-transition eligibility rules.
	transition := func(h http.HandlerFunc) http.Handler {
		return middleware.RequirePermission("ncr:update")(h)
	}
	ncrs.Handle("/{ncrId}/acknowledge", transition(handlers.AcknowledgeNCR)).Methods("POST")
	ncrs.Handle("/{ncrId}/start-work", transition(handlers.StartWorkNCR)).Methods("POST")
	ncrs.Handle("/{ncrId}/resolve", transition(handlers.ResolveNCR)).Methods("POST")
	ncrs.Handle("/{ncrId}/close", transition(handlers.CloseNCR)).Methods("POST")
	ncrs.Handle("/{ncrId}/reopen", transition(handlers.ReopenNCR)).Methods("POST")

	// Contractors may dispute reports raised against them even though they
	// hold no general update permission.
	ncrs.Handle("/{ncrId}/dispute", middleware.RequireAnyPermission(
		[]string{"ncr:update", "ncr:read"})(
		http.HandlerFunc(handlers.DisputeNCR))).Methods("POST")
}

func registerITPRoutes(org *mux.Router) {
	itp := org.PathPrefix("/itp").Subrouter()

	itp.Handle("/templates", middleware.RequirePermission("itp:manage")(
		http.HandlerFunc(handlers.CreateITPTemplate))).Methods("POST")
	itp.Handle("/templates", middleware.RequirePermission("itp:read")(
		http.HandlerFunc(handlers.ListITPTemplates))).Methods("GET")

	itp.Handle("/instances", middleware.RequirePermission("itp:record")(
		http.HandlerFunc(handlers.CreateITPInstance))).Methods("POST")
	itp.Handle("/instances", middleware.RequirePermission("itp:read")(
		http.HandlerFunc(handlers.ListITPInstances))).Methods("GET")
	itp.Handle("/instances/{instanceId}", middleware.RequirePermission("itp:read")(
		http.HandlerFunc(handlers.GetITPInstance))).Methods("GET")
	itp.Handle("/instances/{instanceId}", middleware.RequirePermission("itp:record")(
		http.HandlerFunc(handlers.UpdateITPInstance))).Methods("PUT")

	itp.Handle("/batch-update", middleware.RequirePermission("itp:record")(
		http.HandlerFunc(handlers.BatchUpdateITPInstances))).Methods("POST")
}

func registerReportRoutes(org *mux.Router) {
	org.Handle("/reports/ncr-register", middleware.RequirePermission("report:read")(
		http.HandlerFunc(handlers.ExportNCRRegister))).Methods("GET")
}
