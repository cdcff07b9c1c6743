package tgbot

import (
	"fmt"
	"log/slog"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/tg"
	"github.com/KotFed0t/finance_simulator/internal/transport/telegram"
	customMW "github.com/KotFed0t/finance_simulator/internal/transport/telegram/middleware"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type TGBot struct {
	bot  *tele.Bot
	ctrl *telegram.Controller
}

func New(cfg *config.Config, ctrl *telegram.Controller) (*TGBot, error) {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
		OnError: func(err error, c tele.Context) {
			slog.Error("tgbot handler error", slog.String("err", err.Error()))
		},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("tele.NewBot: %w", err)
	}

	return &TGBot{bot: b, ctrl: ctrl}, nil
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/help", b.ctrl.Start)
	b.bot.Handle("/register", b.ctrl.Register)
	b.bot.Handle("/login", b.ctrl.Login)
	b.bot.Handle("/logout", b.ctrl.Logout)

	authorized := b.bot.Group()
	authorized.Use(b.ctrl.LoadSession)

	authorized.Handle("/quote", b.ctrl.Quote)
	authorized.Handle("/buy", b.ctrl.Buy)
	authorized.Handle("/sell", b.ctrl.Sell)
	authorized.Handle("/portfolio", b.ctrl.Portfolio)
	authorized.Handle("/history", b.ctrl.History)
	authorized.Handle("/report", b.ctrl.Report)

	authorized.Handle(&tele.Btn{Unique: tg.BuyCallback}, b.ctrl.InitTrade(model.ExpectingBuyQuantity))
	authorized.Handle(&tele.Btn{Unique: tg.SellCallback}, b.ctrl.InitTrade(model.ExpectingSellQuantity))
	authorized.Handle(&tele.Btn{Unique: tg.RefreshCallback}, b.ctrl.Portfolio)

	// quantity answers of the buy and sell dialogs
	authorized.Handle(tele.OnText, b.ctrl.ProcessText)
}
