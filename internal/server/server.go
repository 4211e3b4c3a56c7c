package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/audit"
	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	"github.com/equipqr/equipqr/internal/checkout"
	"github.com/equipqr/equipqr/internal/config"
	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
	"github.com/equipqr/equipqr/internal/featureaccess"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/ratelimit"
	"github.com/equipqr/equipqr/internal/rbac"
	"github.com/equipqr/equipqr/internal/session"
	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
	"github.com/equipqr/equipqr/internal/webhook"
	wodomain "github.com/equipqr/equipqr/internal/workorder/domain"
)

// Module wires the HTTP layer.
var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

// Params collects everything the HTTP layer depends on.
type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Auth     authdomain.Service
	Sessions session.Service
	Orgs     orgdomain.Service
	Teams    teamdomain.Service
	Equip    eqdomain.Service
	Orders   wodomain.Service
	Billing  billingdomain.Service
	Access   featureaccess.Service
	Checkout checkout.Service
	Audit    audit.Service
	Webhooks *webhook.Processor
	Limiter  *ratelimit.Limiter
}

// Server owns the gin engine and the route handlers.
type Server struct {
	cfg      config.Config
	log      *zap.Logger
	engine   *gin.Engine
	auth     authdomain.Service
	sessions session.Service
	orgs     orgdomain.Service
	teams    teamdomain.Service
	equip    eqdomain.Service
	orders   wodomain.Service
	billing  billingdomain.Service
	access   featureaccess.Service
	checkout checkout.Service
	audit    audit.Service
	webhooks *webhook.Processor
	limiter  *ratelimit.Limiter
}

func New(p Params) *Server {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      p.Config,
		log:      p.Log,
		auth:     p.Auth,
		sessions: p.Sessions,
		orgs:     p.Orgs,
		teams:    p.Teams,
		equip:    p.Equip,
		orders:   p.Orders,
		billing:  p.Billing,
		access:   p.Access,
		checkout: p.Checkout,
		audit:    p.Audit,
		webhooks: p.Webhooks,
		limiter:  p.Limiter,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(p.Log), requestMetrics())
	s.engine = engine
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/webhooks/stripe", rateLimited(s.limiter), s.handleStripeWebhook)

	api := s.engine.Group("/api/v1")

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.authenticated())
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/auth/me", s.handleMe)
	authed.POST("/session/org", s.handleSwitchOrg)

	authed.POST("/organizations", s.handleCreateOrganization)
	authed.GET("/organizations", s.handleListOrganizations)
	authed.POST("/invites/:id/accept", s.handleAcceptInvite)

	authed.GET("/org/members", s.handleListMembers)
	authed.POST("/org/invites", s.handleInviteMembers)
	authed.PUT("/org/members/:user_id/role", s.handleChangeMemberRole)
	authed.DELETE("/org/members/:user_id", s.handleRemoveMember)

	authed.POST("/teams", s.handleCreateTeam)
	authed.GET("/teams", s.handleListTeams)
	authed.GET("/teams/:id", s.handleGetTeam)
	authed.GET("/teams/:id/members", s.handleListTeamMembers)
	authed.POST("/teams/:id/members", s.handleAddTeamMember)
	authed.PUT("/teams/:id/members/:user_id/role", s.handleChangeTeamRole)
	authed.DELETE("/teams/:id/members/:user_id", s.handleRemoveTeamMember)

	authed.POST("/equipment", s.handleCreateEquipment)
	authed.GET("/equipment", s.handleListEquipment)
	authed.GET("/equipment/:id", s.handleGetEquipment)
	authed.PATCH("/equipment/:id", s.handleUpdateEquipment)
	authed.PUT("/equipment/:id/team", s.handleAssignEquipmentTeam)
	authed.GET("/equipment/:id/work-orders", s.handleListWorkOrders)
	authed.GET("/qr/:key", s.handleGetEquipmentByQR)

	authed.POST("/work-orders", s.handleCreateWorkOrder)
	authed.GET("/work-orders/:id", s.handleGetWorkOrder)
	authed.PUT("/work-orders/:id/status", s.handleChangeWorkOrderStatus)
	authed.PUT("/work-orders/:id/assignee", s.handleAssignWorkOrder)

	authed.GET("/features", s.handleResolveAllFeatures)
	authed.GET("/features/:key", s.handleResolveFeature)

	admin := authed.Group("/billing", requireOrgRole(rbac.RoleAdmin))
	admin.GET("/summary", s.handleBillingSummary)
	admin.GET("/exemptions", s.handleListExemptions)
	admin.POST("/exemptions", s.handleGrantExemption)
	admin.DELETE("/exemptions/:id", s.handleRevokeExemption)
	admin.GET("/audit", s.handleListAuditLog)
	admin.POST("/checkout", s.handleCreateCheckoutSession)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func registerHooks(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
