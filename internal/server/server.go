package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/assessly/internal/analytics"
	analyticsdomain "github.com/smallbiznis/assessly/internal/analytics/domain"
	"github.com/smallbiznis/assessly/internal/assessment"
	assessmentdomain "github.com/smallbiznis/assessly/internal/assessment/domain"
	"github.com/smallbiznis/assessly/internal/auth"
	"github.com/smallbiznis/assessly/internal/authorization"
	"github.com/smallbiznis/assessly/internal/company"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	"github.com/smallbiznis/assessly/internal/config"
	"github.com/smallbiznis/assessly/internal/events"
	"github.com/smallbiznis/assessly/internal/invite"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/license"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	"github.com/smallbiznis/assessly/internal/observability"
	obslogger "github.com/smallbiznis/assessly/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/assessly/internal/observability/metrics"
	obstracing "github.com/smallbiznis/assessly/internal/observability/tracing"
	"github.com/smallbiznis/assessly/internal/project"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	"github.com/smallbiznis/assessly/internal/ratelimit"
	"github.com/smallbiznis/assessly/internal/stats"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	ratelimit.Module,
	auth.Module,
	authorization.Module,
	company.Module,
	license.Module,
	project.Module,
	events.Module,
	stats.Module,
	invite.Module,
	assessment.Module,
	analytics.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

type Params struct {
	fx.In

	Engine        *gin.Engine
	Config        config.Config
	Log           *zap.Logger
	Verifier      auth.Verifier
	Authz         authorization.Service
	Companies     companydomain.Service
	Licenses      licensedomain.Manager
	Projects      projectdomain.Service
	Invites       invitedomain.Service
	Assessments   assessmentdomain.Service
	Stats         statsdomain.Aggregator
	Analytics     analyticsdomain.Service
	InviteLimiter *ratelimit.InviteAccessLimiter `optional:"true"`
	Metrics       *obsmetrics.Metrics            `optional:"true"`
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	verifier      auth.Verifier
	authzSvc      authorization.Service
	companySvc    companydomain.Service
	licenses      licensedomain.Manager
	projectSvc    projectdomain.Service
	inviteSvc     invitedomain.Service
	assessmentSvc assessmentdomain.Service
	stats         statsdomain.Aggregator
	analyticsSvc  analyticsdomain.Service
	inviteLimiter *ratelimit.InviteAccessLimiter
	obsMetrics    *obsmetrics.Metrics
}

func NewServer(p Params) *Server {
	return &Server{
		engine:        p.Engine,
		cfg:           p.Config,
		log:           p.Log.Named("http.server"),
		verifier:      p.Verifier,
		authzSvc:      p.Authz,
		companySvc:    p.Companies,
		licenses:      p.Licenses,
		projectSvc:    p.Projects,
		inviteSvc:     p.Invites,
		assessmentSvc: p.Assessments,
		stats:         p.Stats,
		analyticsSvc:  p.Analytics,
		inviteLimiter: p.InviteLimiter,
		obsMetrics:    p.Metrics,
	}
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	s.RegisterAPIRoutes()
	s.RegisterPublicRoutes()
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.POST("/companies", s.authorizePlatform(authorization.ActionCompanyProvision), s.ProvisionCompany)
	api.POST("/companies/:id/licenses", s.authorizePlatform(authorization.ActionLicenseGrant), s.GrantLicenses)

	member := api.Group("", s.CompanyMember())

	member.GET("/company", s.authorize(authorization.ObjectCompany, authorization.ActionCompanyView), s.GetCompany)
	member.GET("/company/members", s.authorize(authorization.ObjectCompany, authorization.ActionCompanyView), s.ListMembers)
	member.POST("/company/members", s.authorize(authorization.ObjectCompany, authorization.ActionCompanyManage), s.AddMember)

	member.POST("/projects", s.authorize(authorization.ObjectProject, authorization.ActionProjectCreate), s.CreateProject)
	member.GET("/projects", s.authorize(authorization.ObjectProject, authorization.ActionProjectView), s.ListProjects)
	member.GET("/projects/:id", s.authorize(authorization.ObjectProject, authorization.ActionProjectView), s.GetProject)
	member.POST("/projects/:id/archive", s.authorize(authorization.ObjectProject, authorization.ActionProjectArchive), s.ArchiveProject)
	member.GET("/projects/:id/candidates", s.authorize(authorization.ObjectCandidate, authorization.ActionCandidateView), s.ListProjectCandidates)
	member.GET("/projects/:id/invites", s.authorize(authorization.ObjectInvite, authorization.ActionInviteView), s.ListProjectInvites)

	member.POST("/invites", s.authorize(authorization.ObjectInvite, authorization.ActionInviteCreate), s.CreateInvite)
	member.GET("/invites/:id", s.authorize(authorization.ObjectInvite, authorization.ActionInviteView), s.GetInvite)
	member.GET("/invites/:id/candidate", s.authorize(authorization.ObjectCandidate, authorization.ActionCandidateView), s.GetInviteCandidate)
	member.GET("/invites/:id/result", s.authorize(authorization.ObjectCandidate, authorization.ActionCandidateView), s.GetInviteResult)

	member.GET("/analytics", s.authorize(authorization.ObjectAnalytics, authorization.ActionAnalyticsView), s.GetAnalytics)
}

func (s *Server) RegisterPublicRoutes() {
	public := s.engine.Group("/public/invites/:token", candidateErrors(), s.InviteAccessRateLimit())

	public.GET("/validate", s.ValidateInvite)
	public.POST("/open", s.OpenInvite)
	public.POST("/results", s.SubmitResult)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
