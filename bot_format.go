package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	walletText = "*For a Kaspa-wallet you can use one of these applications*\n\n" +
		"*Kaspad (command line wallet)*:\n" +
		"  https://github.com/kaspanet/kaspad\n" +
		"*Kaspa NG (desktop and web)*:\n" +
		"  https://kaspa-ng.org/\n" +
		"*Web wallet*:\n" +
		"  https://wallet.kaspanet.io/"

	chartText = "See *KAS/USDT* chart on CoinGecko:\n" +
		"    https://www.coingecko.com/en/coins/kaspa"

	buyText = "----------------------------------\n" +
		"    💰   *Exchanges*\n" +
		"----------------------------------\n" +
		"  *MEXC*\n" +
		"  https://www.mexc.com/exchange/KAS_USDT\n" +
		"----------------------------------\n" +
		"  *Gate.io*\n" +
		"  https://www.gate.io/trade/KAS_USDT\n" +
		"----------------------------------\n" +
		"  *Kucoin*\n" +
		"  https://www.kucoin.com/trade/KAS-USDT"

	languagesText = "----------------------------------\n" +
		" *Kaspa in your language*\n" +
		"----------------------------------\n" +
		"🇨🇳 https://t.me/kaspa\\_chinese/\n" +
		"🇩🇪 https://t.me/KaspaGerman/\n" +
		"🇷🇺 https://t.me/kaspa\\_rus/\n" +
		"🇹🇷 https://t.me/kaspa\\_turkish/\n" +
		"🇳🇱 https://t.me/Kaspa\\_Dutch/\n" +
		"🇮🇱 https://t.me/kaspahebrewgroup/\n" +
		"🇯🇵 https://t.me/Kaspa\\_Japan"
)

var (
	decimalSompiPerKAS = decimal.NewFromInt(sompiPerKAS)
	decimalMillion     = decimal.NewFromInt(1_000_000)
	decimalHundred     = decimal.NewFromInt(100)
)

// formatKAS renders sompi as KAS with thousands separators and without
// trailing fractional zeros, e.g. 123456789000 -> "1,234.56789".
func formatKAS(sompi uint64) string {
	whole := sompi / sompiPerKAS
	frac := sompi % sompiPerKAS
	s := humanize.Comma(int64(whole))
	if frac == 0 {
		return s
	}
	return s + "." + strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
}

// formatKASRounded renders d (in KAS) rounded to places with separators.
func formatKASRounded(d decimal.Decimal, places int32) string {
	if places <= 0 {
		return humanize.Comma(d.Round(0).IntPart())
	}
	f, _ := d.Round(places).Float64()
	return humanize.CommafWithDigits(f, int(places))
}

func formatDonate(address string) string {
	return fmt.Sprintf("Please consider a donation for KASPA-Bot: `%s`", address)
}

func formatBalance(address string, sompi uint64) string {
	return fmt.Sprintf("```\nBalance for\n  %s\n%s\n%s KAS```", address, strings.Repeat("-", 60), formatKAS(sompi))
}

func formatDevfund(mining, donation uint64) string {
	return fmt.Sprintf("*Balance for devfund*\n\n```\nMINING\n    %s KAS\nDONATION\n    %s KAS\n%s\n%s KAS\n```",
		formatKAS(mining), formatKAS(donation), strings.Repeat("-", 30), formatKAS(mining+donation))
}

func formatCoinSupply(cs CoinSupply) string {
	circ := decimalFromUint64(cs.CirculatingSompi).Div(decimalSompiPerKAS)
	total := decimalFromUint64(cs.MaxSompi).Div(decimalSompiPerKAS)
	uncirc := total.Sub(circ)
	if uncirc.IsNegative() {
		uncirc = decimal.Zero
	}
	percent := decimal.Zero
	if total.IsPositive() {
		percent = circ.Div(total).Mul(decimalHundred).Round(2)
	}
	return fmt.Sprintf("```\n"+
		"Circulating supply  : %s KAS\n"+
		"Uncirculated supply : %s KAS\n\n"+
		"%s\n"+
		"Total supply        : %s KAS\n"+
		"Percent mined       : %s%%\n"+
		"```",
		formatKASRounded(circ, 0),
		formatKASRounded(uncirc, 0),
		strings.Repeat("=", 40),
		formatKASRounded(total, 0),
		percent.StringFixed(2),
	)
}

// formatPrice quotes the price of one million KAS, which keeps the figure
// readable at sub-cent unit prices.
func formatPrice(price float64, fiat string) string {
	perMillion := decimal.NewFromFloat(price).Mul(decimalMillion)
	return fmt.Sprintf("Current KAS price: *%s %s* per 1M KAS", humanize.Comma(perMillion.Round(0).IntPart()), strings.ToUpper(fiat))
}

func formatMarketCap(price float64, cs CoinSupply, fiat string) string {
	p := decimal.NewFromFloat(price)
	mcap := decimalFromUint64(cs.CirculatingSompi).Div(decimalSompiPerKAS).Mul(p)
	fdv := decimalFromUint64(cs.MaxSompi).Div(decimalSompiPerKAS).Mul(p)
	unit := strings.ToUpper(fiat)
	return fmt.Sprintf("*$KAS MARKET CAP*\n%s\n```\n"+
		"Current Market Capitalization : %15s %s\n"+
		"Fully Diluted Valuation (FDV) : %15s %s\n```",
		strings.Repeat("-", 25),
		humanize.Comma(mcap.Round(0).IntPart()), unit,
		humanize.Comma(fdv.Round(0).IntPart()), unit,
	)
}

func formatNetworkHashrate(hps uint64) string {
	return fmt.Sprintf("Current Hashrate: *%s*", formatHashrateRate(hps))
}

func formatMiningReward(est RewardEstimate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Mining rewards for %s*\n", formatHashrateRate(est.OwnHashrate))
	fmt.Fprintf(&b, "_network %s, share %s%%_\n", formatHashrateRate(est.NetworkHashrate), est.Share.Mul(decimalHundred).StringFixed(6))
	b.WriteString("```\n")
	for _, h := range est.Horizons {
		places := int32(2)
		if h.Name == "block" {
			places = 8
		}
		fmt.Fprintf(&b, "%-6s : %15s KAS\n", strings.ToUpper(h.Name[:1])+h.Name[1:], formatKASRounded(h.KAS(), places))
	}
	b.WriteString("```")
	return b.String()
}

func formatChatID(id int64) string {
	return fmt.Sprintf("Chat-Id: %d", id)
}
