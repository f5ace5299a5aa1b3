package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/kaspanet/kaspad/util"
	"gopkg.in/telebot.v4"
)

const (
	cbPriceUpdate    = "cb_update"
	cbHashrateUpdate = "cb_update_hashrate"
)

type priceSource interface {
	KASPrice(ctx context.Context, fiat string) (float64, error)
}

// Gateway routes Telegram commands through the guard middleware to their
// handlers. It owns the debouncer; nothing else writes to it.
type Gateway struct {
	cfg       Config
	node      ChainNode
	prices    priceSource
	estimator RewardEstimator
	debouncer *Debouncer
	metrics   *BotMetrics
	prefix    util.Bech32Prefix

	priceMarkup    *telebot.ReplyMarkup
	priceBtn       telebot.Btn
	hashrateMarkup *telebot.ReplyMarkup
	hashrateBtn    telebot.Btn

	ctxMu sync.RWMutex
	ctx   context.Context
}

func NewGateway(cfg Config, node ChainNode, prices priceSource, debouncer *Debouncer, metrics *BotMetrics) (*Gateway, error) {
	prefix, err := prefixForNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	if debouncer == nil {
		debouncer = NewDebouncer(nil)
	}
	g := &Gateway{
		cfg:       cfg,
		node:      node,
		prices:    prices,
		estimator: NewRewardEstimator(KaspaEmission{}),
		debouncer: debouncer,
		metrics:   metrics,
		prefix:    prefix,
		ctx:       context.Background(),
	}
	g.priceMarkup = &telebot.ReplyMarkup{}
	g.priceBtn = g.priceMarkup.Data("Update", cbPriceUpdate)
	g.priceMarkup.Inline(g.priceMarkup.Row(g.priceBtn))
	g.hashrateMarkup = &telebot.ReplyMarkup{}
	g.hashrateBtn = g.hashrateMarkup.Data("Update", cbHashrateUpdate)
	g.hashrateMarkup.Inline(g.hashrateMarkup.Row(g.hashrateBtn))
	return g, nil
}

func newTelegramBot(cfg Config) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		URL:    cfg.TelegramAPIURL,
		Poller: &telebot.LongPoller{Timeout: cfg.PollTimeout},
		Client: &http.Client{Timeout: cfg.TelegramTimeout},
		OnError: func(err error, c telebot.Context) {
			attrs := []any{"error", err}
			if c != nil && c.Chat() != nil {
				attrs = append(attrs, "chat", c.Chat().ID)
			}
			logger.Error("telegram handler error", attrs...)
		},
	})
}

// Register installs every command and callback handler on b and publishes
// the command list to Telegram.
func (g *Gateway) Register(b *telebot.Bot) {
	var published []telebot.Command
	for _, cmd := range g.commands() {
		b.Handle("/"+cmd.name, cmd.handler, cmd.guards...)
		if cmd.description != "" {
			published = append(published, telebot.Command{Text: cmd.name, Description: cmd.description})
		}
	}
	b.Handle(&g.priceBtn, g.onPriceUpdate)
	b.Handle(&g.hashrateBtn, g.onHashrateUpdate)
	if err := b.SetCommands(published); err != nil {
		logger.Warn("publish bot commands failed", "error", err)
	}
}

// Run polls Telegram until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, b *telebot.Bot) error {
	g.ctxMu.Lock()
	g.ctx = ctx
	g.ctxMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("telegram poller started", "bot", b.Me.Username)
		b.Start()
	}()
	select {
	case <-ctx.Done():
		b.Stop()
		<-done
	case <-done:
	}
	logger.Info("telegram poller stopped")
	return nil
}

func (g *Gateway) baseContext() context.Context {
	g.ctxMu.RLock()
	defer g.ctxMu.RUnlock()
	return g.ctx
}

// debounced suppresses a repeat of the same command in the same chat within
// window and deletes the duplicate message.
func (g *Gateway) debounced(window time.Duration) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}
			key := DebounceKey{ChatID: chat.ID, Command: commandName(c.Text())}
			if !g.debouncer.Allow(key, window) {
				g.metrics.RecordCommand(key.Command, "suppressed")
				logger.Debug("command suppressed",
					"chat", chat.ID,
					"command", key.Command,
					"retry_in", durafmt.Parse(g.debouncer.Remaining(key, window).Truncate(time.Second)).LimitFirstN(2).String(),
				)
				g.deleteQuietly(c)
				return nil
			}
			return next(c)
		}
	}
}

// privateOnly silently removes the command when it is used outside a
// private chat.
func (g *Gateway) privateOnly(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		chat := c.Chat()
		if chat == nil || chat.Type != telebot.ChatPrivate {
			g.metrics.RecordCommand(commandName(c.Text()), "rejected")
			g.deleteQuietly(c)
			return nil
		}
		return next(c)
	}
}

func (g *Gateway) requireParam(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if commandPayload(c) == "" {
			g.metrics.RecordCommand(commandName(c.Text()), "rejected")
			g.deleteQuietly(c)
			return nil
		}
		return next(c)
	}
}

func (g *Gateway) deleteQuietly(c telebot.Context) {
	if err := c.Delete(); err != nil {
		if isIgnorableDeleteError(err) {
			logger.Debug("delete message skipped", "error", err)
			return
		}
		logger.Warn("delete message failed", "error", err)
	}
}

// commandName normalizes "/Price@KaspaBot 1 2" to "/price".
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '@'); i >= 0 {
		text = text[:i]
	}
	return strings.ToLower(text)
}

func commandPayload(c telebot.Context) string {
	if msg := c.Message(); msg != nil {
		if p := strings.TrimSpace(msg.Payload); p != "" {
			return p
		}
	}
	text := strings.TrimSpace(c.Text())
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

func isIgnorableDeleteError(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message can't be deleted") ||
		strings.Contains(msg, "message to delete not found")
}

func isNotModifiedError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// userFacing reports whether err should be answered in chat. Chain and
// price failures abort the command without a reply.
func userFacing(err error) bool {
	return errors.Is(err, ErrParse) || errors.Is(err, ErrDomain)
}
