package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	"github.com/smallbiznis/redress/internal/auth"
	"github.com/smallbiznis/redress/internal/authorization"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	chatdomain "github.com/smallbiznis/redress/internal/chat/domain"
	"github.com/smallbiznis/redress/internal/config"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/observability"
	obsmiddleware "github.com/smallbiznis/redress/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	obstracing "github.com/smallbiznis/redress/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
	pipelinedomain "github.com/smallbiznis/redress/internal/pipeline/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Named("http.server").Info("listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	verifier    *auth.Verifier
	authzSvc    authorization.Service
	accountSvc  accountdomain.Service
	creditSvc   creditdomain.Service
	caseSvc     casedomain.Service
	pipelineSvc pipelinedomain.Service
	evidenceSvc evidencedomain.Service
	letterSvc   letterdomain.Service
	dispatchSvc dispatchdomain.Service
	approvalSvc approvaldomain.Service
	paymentSvc  paymentdomain.Service
	chatSvc     chatdomain.Service
	auditSvc    auditdomain.Service
	now         func() time.Time
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Verifier    *auth.Verifier
	AuthzSvc    authorization.Service
	AccountSvc  accountdomain.Service
	CreditSvc   creditdomain.Service
	CaseSvc     casedomain.Service
	PipelineSvc pipelinedomain.Service
	EvidenceSvc evidencedomain.Service
	LetterSvc   letterdomain.Service
	DispatchSvc dispatchdomain.Service
	ApprovalSvc approvaldomain.Service
	PaymentSvc  paymentdomain.Service
	ChatSvc     chatdomain.Service
	AuditSvc    auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		verifier:    p.Verifier,
		authzSvc:    p.AuthzSvc,
		accountSvc:  p.AccountSvc,
		creditSvc:   p.CreditSvc,
		caseSvc:     p.CaseSvc,
		pipelineSvc: p.PipelineSvc,
		evidenceSvc: p.EvidenceSvc,
		letterSvc:   p.LetterSvc,
		dispatchSvc: p.DispatchSvc,
		approvalSvc: p.ApprovalSvc,
		paymentSvc:  p.PaymentSvc,
		chatSvc:     p.ChatSvc,
		auditSvc:    p.AuditSvc,
		now:         time.Now,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/t/:trackingID/pixel.gif", s.TrackOpen)

	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/payments/:provider", s.HandlePaymentWebhook)
	webhooks.POST("/approvals", s.HandleApprovalWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Account --------
	api.GET("/me", s.GetMe)
	api.PUT("/me/profile", s.UpdateProfile)
	api.GET("/credits/transactions", s.ListCreditTransactions)

	// -------- Cases --------
	api.POST("/cases", s.CreateCase)
	api.GET("/cases", s.ListCases)
	api.GET("/cases/:id", s.GetCase)
	api.PATCH("/cases/:id", s.UpdateCase)
	api.POST("/cases/:id/analyze", s.AnalyzeCase)
	api.POST("/cases/:id/reanalyze", s.ReanalyzeCase)
	api.POST("/cases/:id/resolve", s.ResolveCase)

	// -------- Evidence & notes --------
	api.POST("/cases/:id/evidence", s.AddEvidence)
	api.GET("/cases/:id/evidence", s.ListEvidence)
	api.POST("/cases/:id/notes", s.AddNote)
	api.GET("/cases/:id/notes", s.ListNotes)

	// -------- Letters --------
	api.POST("/cases/:id/letters", s.GenerateLetter)
	api.GET("/cases/:id/letters", s.ListLetters)
	api.GET("/cases/:id/letters/latest", s.LatestLetters)
	api.GET("/cases/:id/letters/:letterID/pdf", s.DownloadLetterPDF)
	api.POST("/cases/:id/letters/:letterID/send", s.SendLetter)
	api.GET("/cases/:id/sends", s.ListSends)

	// -------- Chat --------
	api.POST("/cases/:id/chat", s.StreamChat)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired())

	admin.POST("/accounts/:id/credits",
		s.authorizeAction(authorization.ObjectCredit, authorization.ActionCreditAdjust),
		s.AdjustCredits,
	)
	admin.GET("/audit-logs",
		s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView),
		s.ListAuditLogs,
	)
}
