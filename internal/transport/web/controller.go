package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/data/session"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	sessionCookie = "session"
	sessionLocal  = "session"
)

var flashes = map[string]string{
	"bought":     "Bought!",
	"sold":       "Sold!",
	"registered": "Registered!",
}

type Ledger interface {
	Quote(ctx context.Context, symbol string) (model.Quote, error)
	Buy(ctx context.Context, userID int64, symbol, rawQuantity string) (model.Trade, error)
	Sell(ctx context.Context, userID int64, symbol, rawQuantity string) (model.Trade, error)
	Valuate(ctx context.Context, userID int64) (model.Portfolio, error)
	History(ctx context.Context, userID int64) ([]model.LedgerEntry, error)
	ExportReport(ctx context.Context, userID int64) (fileBytes []byte, filename string, err error)
}

type Auth interface {
	Register(ctx context.Context, username, password, confirmation string) (model.Account, error)
	Authenticate(ctx context.Context, username, password string) (model.Account, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, s model.Session) error
	DeleteSession(ctx context.Context, key string) error
}

type Controller struct {
	cfg     *config.Config
	ledger  Ledger
	auth    Auth
	session Session
}

func NewController(cfg *config.Config, ledger Ledger, auth Auth, session Session) *Controller {
	return &Controller{cfg: cfg, ledger: ledger, auth: auth, session: session}
}

func currentSession(c *fiber.Ctx) model.Session {
	s, _ := c.Locals(sessionLocal).(model.Session)
	return s
}

func (ctrl *Controller) render(c *fiber.Ctx, name string, bind fiber.Map) error {
	if bind == nil {
		bind = fiber.Map{}
	}
	bind["Title"] = pageTitles[name]
	bind["Session"] = currentSession(c)
	bind["Flash"] = flashes[c.Query("flash")]
	return c.Render(name, bind)
}

// apology answers user errors with their message and hides everything else behind a generic one.
func (ctrl *Controller) apology(c *fiber.Ctx, err error) error {
	rqID, _ := c.Locals("rqID").(string)

	status := fiber.StatusInternalServerError
	message := "something went wrong"
	switch {
	case service.IsCredentialsError(err):
		status, message = fiber.StatusForbidden, err.Error()
	case service.IsUserError(err):
		status, message = fiber.StatusBadRequest, err.Error()
	default:
		slog.Error("request failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	c.Status(status)
	return ctrl.render(c, "apology", fiber.Map{"Status": status, "Message": message})
}

// LoadSession resolves the session cookie into the request identity.
func (ctrl *Controller) LoadSession(c *fiber.Ctx) error {
	token := c.Cookies(sessionCookie)
	if token == "" {
		return c.Next()
	}

	s, err := ctrl.session.GetSession(c.UserContext(), session.WebPrefix+token)
	switch {
	case err == nil:
		c.Locals(sessionLocal, s)
	case errors.Is(err, session.ErrNotFound):
		ctrl.clearCookie(c)
	default:
		return err
	}

	return c.Next()
}

func (ctrl *Controller) RequireLogin(c *fiber.Ctx) error {
	if !currentSession(c).Authenticated() {
		return c.Redirect("/login")
	}
	return c.Next()
}

func (ctrl *Controller) Index(c *fiber.Ctx) error {
	portfolio, err := ctrl.ledger.Valuate(c.UserContext(), currentSession(c).UserID)
	if err != nil {
		return ctrl.apology(c, err)
	}
	return ctrl.render(c, "index", fiber.Map{"Portfolio": portfolio})
}

func (ctrl *Controller) QuoteForm(c *fiber.Ctx) error {
	return ctrl.render(c, "quote", nil)
}

func (ctrl *Controller) Quote(c *fiber.Ctx) error {
	quote, err := ctrl.ledger.Quote(c.UserContext(), c.FormValue("symbol"))
	if err != nil {
		return ctrl.apology(c, err)
	}
	return ctrl.render(c, "quoted", fiber.Map{"Quote": quote})
}

func (ctrl *Controller) BuyForm(c *fiber.Ctx) error {
	return ctrl.render(c, "buy", nil)
}

func (ctrl *Controller) Buy(c *fiber.Ctx) error {
	_, err := ctrl.ledger.Buy(c.UserContext(), currentSession(c).UserID, c.FormValue("symbol"), c.FormValue("shares"))
	if err != nil {
		return ctrl.apology(c, err)
	}
	return c.Redirect("/?flash=bought")
}

func (ctrl *Controller) SellForm(c *fiber.Ctx) error {
	portfolio, err := ctrl.ledger.Valuate(c.UserContext(), currentSession(c).UserID)
	if err != nil {
		return ctrl.apology(c, err)
	}
	return ctrl.render(c, "sell", fiber.Map{"Positions": portfolio.Positions})
}

func (ctrl *Controller) Sell(c *fiber.Ctx) error {
	_, err := ctrl.ledger.Sell(c.UserContext(), currentSession(c).UserID, c.FormValue("symbol"), c.FormValue("shares"))
	if err != nil {
		return ctrl.apology(c, err)
	}
	return c.Redirect("/?flash=sold")
}

func (ctrl *Controller) History(c *fiber.Ctx) error {
	history, err := ctrl.ledger.History(c.UserContext(), currentSession(c).UserID)
	if err != nil {
		return ctrl.apology(c, err)
	}
	return ctrl.render(c, "history", fiber.Map{"History": history})
}

func (ctrl *Controller) Report(c *fiber.Ctx) error {
	fileBytes, filename, err := ctrl.ledger.ExportReport(c.UserContext(), currentSession(c).UserID)
	if err != nil {
		return ctrl.apology(c, err)
	}
	c.Attachment(filename)
	return c.Send(fileBytes)
}

// LoginForm forgets any previous session, same as logging out first.
func (ctrl *Controller) LoginForm(c *fiber.Ctx) error {
	if err := ctrl.forget(c); err != nil {
		return ctrl.apology(c, err)
	}
	return ctrl.render(c, "login", nil)
}

func (ctrl *Controller) Login(c *fiber.Ctx) error {
	if err := ctrl.forget(c); err != nil {
		return ctrl.apology(c, err)
	}

	account, err := ctrl.auth.Authenticate(c.UserContext(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return ctrl.apology(c, err)
	}

	if err = ctrl.remember(c, account); err != nil {
		return ctrl.apology(c, err)
	}

	return c.Redirect("/")
}

func (ctrl *Controller) Logout(c *fiber.Ctx) error {
	if err := ctrl.forget(c); err != nil {
		return ctrl.apology(c, err)
	}
	return c.Redirect("/")
}

func (ctrl *Controller) RegisterForm(c *fiber.Ctx) error {
	return ctrl.render(c, "register", nil)
}

// Register creates the account and logs the new user in.
func (ctrl *Controller) Register(c *fiber.Ctx) error {
	account, err := ctrl.auth.Register(
		c.UserContext(),
		c.FormValue("username"),
		c.FormValue("password"),
		c.FormValue("passwordAgain"),
	)
	if err != nil {
		return ctrl.apology(c, err)
	}

	if err = ctrl.forget(c); err != nil {
		return ctrl.apology(c, err)
	}
	if err = ctrl.remember(c, account); err != nil {
		return ctrl.apology(c, err)
	}

	return c.Redirect("/?flash=registered")
}

func (ctrl *Controller) Healthz(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (ctrl *Controller) remember(c *fiber.Ctx, account model.Account) error {
	token := uuid.NewString()
	s := model.Session{UserID: account.UserID, Username: account.Username}

	if err := ctrl.session.SetSession(c.UserContext(), session.WebPrefix+token, s); err != nil {
		return err
	}

	c.Locals(sessionLocal, s)
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ctrl.cfg.SessionExpiration),
		HTTPOnly: true,
		Secure:   ctrl.cfg.HTTP.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return nil
}

func (ctrl *Controller) forget(c *fiber.Ctx) error {
	token := c.Cookies(sessionCookie)
	c.Locals(sessionLocal, model.Session{})
	if token == "" {
		return nil
	}

	ctrl.clearCookie(c)
	return ctrl.session.DeleteSession(c.UserContext(), session.WebPrefix+token)
}

func (ctrl *Controller) clearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   ctrl.cfg.HTTP.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
