package main

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/telebot.v4"
)

type commandSpec struct {
	name        string
	description string
	handler     telebot.HandlerFunc
	guards      []telebot.MiddlewareFunc
}

func (g *Gateway) commands() []commandSpec {
	priceWindow := g.debounced(g.cfg.PriceDebounce)
	infoWindow := g.debounced(g.cfg.InfoDebounce)
	return []commandSpec{
		{name: "donate", description: "Donation address of this bot", handler: g.handleDonate, guards: []telebot.MiddlewareFunc{priceWindow}},
		{name: "balance", description: "Balance of a kaspa address (private chat)", handler: g.handleBalance, guards: []telebot.MiddlewareFunc{g.privateOnly, g.requireParam}},
		{name: "devfund", description: "Devfund balances (private chat)", handler: g.handleDevfund, guards: []telebot.MiddlewareFunc{g.privateOnly}},
		{name: "coin_supply", description: "Circulating and total supply", handler: g.handleCoinSupply, guards: []telebot.MiddlewareFunc{infoWindow}},
		{name: "price", description: "Current KAS price", handler: g.handlePrice, guards: []telebot.MiddlewareFunc{priceWindow}},
		{name: "wallet", description: "Wallet applications", handler: g.handleStatic(walletText), guards: []telebot.MiddlewareFunc{priceWindow}},
		{name: "mining_reward", description: "Expected rewards for a hashrate (private chat)", handler: g.handleMiningReward, guards: []telebot.MiddlewareFunc{g.privateOnly, g.requireParam}},
		{name: "id", handler: g.handleID},
		{name: "chart", description: "Price chart", handler: g.handleStatic(chartText)},
		{name: "mcap", description: "Market cap and FDV", handler: g.handleMarketCap, guards: []telebot.MiddlewareFunc{infoWindow}},
		{name: "hashrate", description: "Network hashrate", handler: g.handleHashrate, guards: []telebot.MiddlewareFunc{infoWindow}},
		{name: "buy", description: "Where to buy KAS", handler: g.handleStatic(buyText), guards: []telebot.MiddlewareFunc{infoWindow}},
		{name: "languages", description: "Community groups by language", handler: g.handleStatic(languagesText), guards: []telebot.MiddlewareFunc{infoWindow}},
	}
}

// respond runs build and sends its text. Parse and domain errors are
// answered with their reply text; anything else is logged and the command
// ends without a reply.
func (g *Gateway) respond(c telebot.Context, build func(ctx context.Context) (string, error), opts ...interface{}) error {
	cmd := commandName(c.Text())
	text, err := build(g.baseContext())
	if err != nil {
		var re *replyError
		if userFacing(err) && errors.As(err, &re) {
			g.metrics.RecordCommand(cmd, "rejected")
			return c.Send(re.reply, telebot.ModeMarkdown)
		}
		g.metrics.RecordCommand(cmd, "failed")
		attrs := []any{"command", cmd, "error", err}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, "chat", chat.ID)
		}
		logger.Warn("command aborted", attrs...)
		return nil
	}
	g.metrics.RecordCommand(cmd, "handled")
	return c.Send(text, append([]interface{}{telebot.ModeMarkdown, telebot.NoPreview}, opts...)...)
}

// replyError carries the chat reply for a parse or domain failure.
type replyError struct {
	reply string
	err   error
}

func (e *replyError) Error() string { return e.err.Error() }
func (e *replyError) Unwrap() error { return e.err }

func withReply(err error, reply string) error {
	return &replyError{reply: reply, err: err}
}

func (g *Gateway) handleStatic(text string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return g.respond(c, func(context.Context) (string, error) { return text, nil })
	}
}

func (g *Gateway) handleDonate(c telebot.Context) error {
	return g.respond(c, func(context.Context) (string, error) {
		return formatDonate(g.cfg.DonationAddress), nil
	})
}

func (g *Gateway) handleID(c telebot.Context) error {
	return g.respond(c, func(context.Context) (string, error) {
		return formatChatID(c.Chat().ID), nil
	})
}

func (g *Gateway) handleBalance(c telebot.Context) error {
	arg := commandPayload(c)
	return g.respond(c, func(ctx context.Context) (string, error) {
		return g.balanceText(ctx, arg)
	})
}

func (g *Gateway) handleDevfund(c telebot.Context) error {
	return g.respond(c, g.devfundText)
}

func (g *Gateway) handleCoinSupply(c telebot.Context) error {
	return g.respond(c, g.coinSupplyText)
}

func (g *Gateway) handlePrice(c telebot.Context) error {
	return g.respond(c, g.priceText, g.priceMarkup)
}

func (g *Gateway) handleMarketCap(c telebot.Context) error {
	return g.respond(c, g.marketCapText)
}

func (g *Gateway) handleHashrate(c telebot.Context) error {
	return g.respond(c, g.hashrateText, g.hashrateMarkup)
}

func (g *Gateway) handleMiningReward(c telebot.Context) error {
	arg := commandPayload(c)
	return g.respond(c, func(ctx context.Context) (string, error) {
		return g.miningRewardText(ctx, arg)
	})
}

func (g *Gateway) onPriceUpdate(c telebot.Context) error {
	return g.refresh(c, g.priceText, g.priceMarkup)
}

func (g *Gateway) onHashrateUpdate(c telebot.Context) error {
	return g.refresh(c, g.hashrateText, g.hashrateMarkup)
}

// refresh edits the message behind an Update button. The callback is
// always acknowledged so the client stops its spinner.
func (g *Gateway) refresh(c telebot.Context, build func(ctx context.Context) (string, error), markup *telebot.ReplyMarkup) error {
	defer func() {
		if err := c.Respond(); err != nil {
			logger.Debug("answer callback failed", "error", err)
		}
	}()
	text, err := build(g.baseContext())
	if err != nil {
		logger.Warn("update button aborted", "error", err)
		return nil
	}
	if err := c.Edit(text, markup, telebot.ModeMarkdown); err != nil && !isNotModifiedError(err) {
		return err
	}
	return nil
}

func (g *Gateway) balanceText(ctx context.Context, arg string) (string, error) {
	addr, err := validateKaspaAddress(sanitizeAddress(arg), g.prefix)
	if err != nil {
		return "", withReply(err, "kaspa wallet not valid.")
	}
	sompi, err := g.node.Balance(ctx, addr)
	if err != nil {
		return "", err
	}
	return formatBalance(addr, sompi), nil
}

func (g *Gateway) devfundText(ctx context.Context) (string, error) {
	if g.cfg.DevfundMiningAddress == "" || g.cfg.DevfundDonationAddress == "" {
		return "", withReply(fmt.Errorf("%w: devfund addresses not configured", ErrDomain), "Devfund addresses are not configured.")
	}
	mining, err := g.node.Balance(ctx, g.cfg.DevfundMiningAddress)
	if err != nil {
		return "", err
	}
	donation, err := g.node.Balance(ctx, g.cfg.DevfundDonationAddress)
	if err != nil {
		return "", err
	}
	return formatDevfund(mining, donation), nil
}

func (g *Gateway) coinSupplyText(ctx context.Context) (string, error) {
	cs, err := g.node.CoinSupply(ctx)
	if err != nil {
		return "", err
	}
	return formatCoinSupply(cs), nil
}

func (g *Gateway) priceText(ctx context.Context) (string, error) {
	price, err := g.prices.KASPrice(ctx, g.cfg.FiatCurrency)
	if err != nil {
		return "", err
	}
	return formatPrice(price, g.cfg.FiatCurrency), nil
}

func (g *Gateway) marketCapText(ctx context.Context) (string, error) {
	price, err := g.prices.KASPrice(ctx, g.cfg.FiatCurrency)
	if err != nil {
		return "", err
	}
	cs, err := g.node.CoinSupply(ctx)
	if err != nil {
		return "", err
	}
	return formatMarketCap(price, cs, g.cfg.FiatCurrency), nil
}

func (g *Gateway) hashrateText(ctx context.Context) (string, error) {
	stats, err := g.node.Stats(ctx)
	if err != nil {
		return "", err
	}
	return formatNetworkHashrate(stats.NetworkHashrate), nil
}

func (g *Gateway) miningRewardText(ctx context.Context, arg string) (string, error) {
	own, err := ParseHashrate(arg)
	if err != nil {
		return "", withReply(err, "Hashrate not understood. Try `/mining_reward 1.5 TH/s`.")
	}
	stats, err := g.node.Stats(ctx)
	if err != nil {
		return "", err
	}
	est, err := g.estimator.Estimate(own, stats.NetworkHashrate, stats.DAAScore)
	if err != nil {
		if errors.Is(err, ErrDomain) {
			if stats.NetworkHashrate == 0 {
				return "", withReply(err, "Network hashrate unavailable, try again later.")
			}
			return "", withReply(err, fmt.Sprintf("%s is more than the whole network (%s).",
				formatHashrateRate(own), formatHashrateRate(stats.NetworkHashrate)))
		}
		return "", err
	}
	return formatMiningReward(est), nil
}
