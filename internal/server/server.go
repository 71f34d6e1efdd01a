package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/telcobill/internal/config"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	"github.com/smallbiznis/telcobill/internal/invoice/render"
	paymentdomain "github.com/smallbiznis/telcobill/internal/payment/domain"
	"github.com/smallbiznis/telcobill/internal/penalty"
	plandomain "github.com/smallbiznis/telcobill/internal/plan/domain"
	"github.com/smallbiznis/telcobill/internal/scheduler"
	usagedomain "github.com/smallbiznis/telcobill/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

type ServerParams struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Engine      *gin.Engine
	CustomerSvc customerdomain.Service
	PlanSvc     plandomain.Service
	UsageSvc    usagedomain.Service
	InvoiceSvc  invoicedomain.Service
	PaymentSvc  paymentdomain.Service
	Renderer    render.Renderer
	Scheduler   *scheduler.Scheduler
	Penalties   *penalty.Engine
}

type Server struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	engine      *gin.Engine
	customerSvc customerdomain.Service
	planSvc     plandomain.Service
	usageSvc    usagedomain.Service
	invoiceSvc  invoicedomain.Service
	paymentSvc  paymentdomain.Service
	renderer    render.Renderer
	scheduler   *scheduler.Scheduler
	penalties   *penalty.Engine
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	return engine
}

func NewServer(p ServerParams) *Server {
	return &Server{
		db:          p.DB,
		log:         p.Log.Named("server"),
		cfg:         p.Cfg,
		engine:      p.Engine,
		customerSvc: p.CustomerSvc,
		planSvc:     p.PlanSvc,
		usageSvc:    p.UsageSvc,
		invoiceSvc:  p.InvoiceSvc,
		paymentSvc:  p.PaymentSvc,
		renderer:    p.Renderer,
		scheduler:   p.Scheduler,
		penalties:   p.Penalties,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.POST("/customers", s.CreateCustomer)
		api.GET("/customers", s.ListCustomers)
		api.GET("/customers/:id", s.GetCustomer)
		api.POST("/customers/:id/deactivate", s.DeactivateCustomer)
		api.POST("/customers/:id/reactivate", s.ReactivateCustomer)
		api.POST("/customers/:id/disconnect", s.DisconnectCustomer)
		api.GET("/customers/:id/sims", s.ListSims)

		api.POST("/sims", s.ProvisionSim)
		api.POST("/sims/:id/deactivate", s.DeactivateSim)

		api.POST("/plans", s.CreatePlan)
		api.GET("/plans", s.ListPlans)
		api.PUT("/plans/:id", s.UpdatePlan)
		api.DELETE("/plans/:id", s.DeletePlan)

		api.POST("/usage", s.IngestUsage)
		api.GET("/usage", s.ListUsage)

		api.GET("/bills", s.ListBills)
		api.GET("/bills/:id", s.GetBill)
		api.GET("/bills/:id/render", s.RenderBill)
		api.GET("/bills/:id/payments", s.ListPayments)
		api.POST("/bills/:id/payments", s.ApplyPayment)

		api.POST("/billing/run", s.RunBillingCycle)
		api.POST("/billing/penalty-scan", s.RunPenaltyScan)
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
