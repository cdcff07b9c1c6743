package web

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/internal/transport/web/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app  *fiber.App
	addr string
}

func New(cfg *config.Config, ctrl *Controller) *Server {
	views := NewViews()
	if err := views.Load(); err != nil {
		panic(err.Error())
	}

	app := fiber.New(fiber.Config{
		Views:                 views,
		ViewsLayout:           layoutName,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				c.Status(fe.Code)
				return ctrl.render(c, "apology", fiber.Map{"Status": fe.Code, "Message": fe.Message})
			}
			return ctrl.apology(c, err)
		},
	})

	app.Use(
		recover.New(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.NoCache(),
		ctrl.LoadSession,
	)

	setupRoutes(app, ctrl)

	return &Server{app: app, addr: cfg.HTTP.Addr}
}

func setupRoutes(app *fiber.App, ctrl *Controller) {
	app.Get("/healthz", ctrl.Healthz)

	app.Get("/login", ctrl.LoginForm)
	app.Post("/login", ctrl.Login)
	app.Get("/logout", ctrl.Logout)
	app.Get("/register", ctrl.RegisterForm)
	app.Post("/register", ctrl.Register)

	authorized := app.Group("", ctrl.RequireLogin)
	authorized.Get("/", ctrl.Index)
	authorized.Get("/quote", ctrl.QuoteForm)
	authorized.Post("/quote", ctrl.Quote)
	authorized.Get("/buy", ctrl.BuyForm)
	authorized.Post("/buy", ctrl.Buy)
	authorized.Get("/sell", ctrl.SellForm)
	authorized.Post("/sell", ctrl.Sell)
	authorized.Get("/history", ctrl.History)
	authorized.Get("/report", ctrl.Report)
}

// App exposes the fiber app for in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() {
	go func() {
		slog.Info("http server started", slog.String("addr", s.addr))
		if err := s.app.Listen(s.addr); err != nil {
			slog.Error("http server stopped with error", slog.String("err", err.Error()))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	slog.Info("start stopping http server")
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		slog.Error("http server shutdown error", slog.String("err", err.Error()))
	}
	slog.Info("http server stopped")
}
