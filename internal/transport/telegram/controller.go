package telegram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/data/session"
	"github.com/KotFed0t/finance_simulator/internal/converter/telebotConverter"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/service"
	"github.com/KotFed0t/finance_simulator/utils"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg = "something went wrong..."
	helpMsg        = `Welcome to the finance simulator!

/register <username> <password> <password>
/login <username> <password>
/logout
/quote <symbol>
/buy <symbol> <shares>
/sell <symbol> <shares>
/portfolio
/history
/report`
)

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
	SetSession(ctx context.Context, key string, session model.Session) error
	DeleteSession(ctx context.Context, key string) error
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type Controller struct {
	cfg          *config.Config
	ledger       Ledger
	auth         Auth
	session      Session
	cloudStorage CloudStorage
}

// NewController accepts a nil cloudStorage, big reports are then sent as documents anyway.
func NewController(cfg *config.Config, ledger Ledger, auth Auth, session Session, cloudStorage CloudStorage) *Controller {
	return &Controller{
		cfg:          cfg,
		ledger:       ledger,
		auth:         auth,
		session:      session,
		cloudStorage: cloudStorage,
	}
}

func SessionKey(chatID int64) string {
	return session.TelegramPrefix + strconv.FormatInt(chatID, 10)
}

// replyErr shows user errors as is and hides the rest.
func replyErr(c tele.Context, rqID string, err error) error {
	if service.IsUserError(err) {
		return c.Send("⚠️ " + err.Error())
	}
	slog.Error("telegram request failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
	return c.Send(internalErrMsg)
}

func deleteMessage(c tele.Context, rqID string) {
	if err := c.Delete(); err != nil {
		slog.Warn("can't delete message with credentials", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	return c.Send(helpMsg)
}

func (ctrl *Controller) Register(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	// the message carries a password
	deleteMessage(c, rqID)

	args := c.Args()
	if len(args) != 3 {
		return c.Send("usage: /register <username> <password> <password>")
	}

	account, err := ctrl.auth.Register(ctx, args[0], args[1], args[2])
	if err != nil {
		return replyErr(c, rqID, err)
	}

	if err = ctrl.remember(ctx, c, account); err != nil {
		return replyErr(c, rqID, err)
	}

	return c.Send("Registered! Cash: " + utils.USD(account.Cash))
}

func (ctrl *Controller) Login(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	deleteMessage(c, rqID)

	args := c.Args()
	if len(args) != 2 {
		return c.Send("usage: /login <username> <password>")
	}

	account, err := ctrl.auth.Authenticate(ctx, args[0], args[1])
	if err != nil {
		return replyErr(c, rqID, err)
	}

	if err = ctrl.remember(ctx, c, account); err != nil {
		return replyErr(c, rqID, err)
	}

	return c.Send("Logged in as " + account.Username)
}

func (ctrl *Controller) remember(ctx context.Context, c tele.Context, account model.Account) error {
	return ctrl.session.SetSession(ctx, SessionKey(c.Chat().ID), model.Session{
		UserID:   account.UserID,
		Username: account.Username,
	})
}

func (ctrl *Controller) Logout(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.session.DeleteSession(ctx, SessionKey(c.Chat().ID)); err != nil {
		return replyErr(c, rqID, err)
	}
	return c.Send("Logged out")
}

func (ctrl *Controller) Quote(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	quote, err := ctrl.ledger.Quote(ctx, strings.Join(c.Args(), ""))
	if err != nil {
		return replyErr(c, rqID, err)
	}

	return c.Send(telebotConverter.QuoteResponse(quote))
}

func (ctrl *Controller) Buy(c tele.Context) error {
	symbol, quantity := symbolAndQuantity(c.Args())
	return ctrl.trade(c, model.SideBuy, symbol, quantity)
}

func (ctrl *Controller) Sell(c tele.Context) error {
	symbol, quantity := symbolAndQuantity(c.Args())
	return ctrl.trade(c, model.SideSell, symbol, quantity)
}

func symbolAndQuantity(args []string) (symbol, quantity string) {
	if len(args) > 0 {
		symbol = args[0]
	}
	if len(args) > 1 {
		quantity = args[1]
	}
	return symbol, quantity
}

func (ctrl *Controller) trade(c tele.Context, side model.Side, symbol, quantity string) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession := getSession(c)

	var (
		trade model.Trade
		err   error
	)
	if side == model.SideBuy {
		trade, err = ctrl.ledger.Buy(ctx, chatSession.UserID, symbol, quantity)
	} else {
		trade, err = ctrl.ledger.Sell(ctx, chatSession.UserID, symbol, quantity)
	}
	if err != nil {
		return replyErr(c, rqID, err)
	}

	return c.Send(telebotConverter.TradeResponse(trade))
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolio, err := ctrl.ledger.Valuate(ctx, getSession(c).UserID)
	if err != nil {
		return replyErr(c, rqID, err)
	}

	text, markup := telebotConverter.PortfolioResponse(portfolio)
	if c.Callback() != nil {
		_ = c.Respond()
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	history, err := ctrl.ledger.History(ctx, getSession(c).UserID)
	if err != nil {
		return replyErr(c, rqID, err)
	}

	return c.Send(telebotConverter.HistoryResponse(history))
}

// Report sends the workbook, or a link to it when it exceeds the bot file limit and cloud storage is set up.
func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	fileBytes, filename, err := ctrl.ledger.ExportReport(ctx, getSession(c).UserID)
	if err != nil {
		return replyErr(c, rqID, err)
	}

	// bot API rejects uploads above the limit
	if len(fileBytes) > ctrl.cfg.Telegram.FileLimitInBytes && ctrl.cloudStorage != nil {
		link, err := ctrl.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
		if err != nil {
			return replyErr(c, rqID, err)
		}
		return c.Send("The report is too big for telegram, download it here: " + link)
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(fileBytes)),
		FileName: filename,
	}
	return c.Send(doc)
}

// InitTrade handles the buy and sell buttons: the next text message is expected to be a quantity.
func (ctrl *Controller) InitTrade(state model.ChatState) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession := getSession(c)
		chatSession.State = state
		chatSession.Symbol = c.Callback().Data

		if err := ctrl.session.SetSession(ctx, SessionKey(c.Chat().ID), chatSession); err != nil {
			_ = c.Respond()
			return replyErr(c, rqID, err)
		}

		_ = c.Respond()
		return c.Send("How many shares of " + chatSession.Symbol + "?")
	}
}

// ProcessText continues a dialog started by InitTrade.
func (ctrl *Controller) ProcessText(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession := getSession(c)

	var side model.Side
	switch chatSession.State {
	case model.ExpectingBuyQuantity:
		side = model.SideBuy
	case model.ExpectingSellQuantity:
		side = model.SideSell
	default:
		return c.Send("enter one of the commands first, see /start")
	}

	// the dialog ends with this message even if the trade is rejected
	symbol := chatSession.Symbol
	chatSession.State = model.DefaultState
	chatSession.Symbol = ""
	if err := ctrl.session.SetSession(ctx, SessionKey(c.Chat().ID), chatSession); err != nil {
		return replyErr(c, rqID, err)
	}

	return ctrl.trade(c, side, symbol, c.Text())
}

func getSession(c tele.Context) model.Session {
	s, _ := c.Get("session").(model.Session)
	return s
}

// LoadSession reads the chat session for handlers that need a logged in user.
func (ctrl *Controller) LoadSession(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := ctrl.session.GetSession(ctx, SessionKey(c.Chat().ID))
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send(internalErrMsg)
		}

		if !chatSession.Authenticated() {
			// stops the spinner on the pressed button
			if c.Callback() != nil {
				_ = c.Respond()
			}
			return c.Send("please /login or /register first")
		}

		c.Set("session", chatSession)
		return next(c)
	}
}
