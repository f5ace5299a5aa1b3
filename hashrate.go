package main

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type hashrateUnit struct {
	symbol string
	prefix string
	factor uint64
}

// hashrateUnits is ordered smallest first. EH is the top unit: a uint64
// cannot hold a full ZH.
var hashrateUnits = []hashrateUnit{
	{symbol: "H", prefix: "", factor: 1},
	{symbol: "KH", prefix: "k", factor: 1e3},
	{symbol: "MH", prefix: "m", factor: 1e6},
	{symbol: "GH", prefix: "g", factor: 1e9},
	{symbol: "TH", prefix: "t", factor: 1e12},
	{symbol: "PH", prefix: "p", factor: 1e15},
	{symbol: "EH", prefix: "e", factor: 1e18},
}

// number, optional unit prefix, optional "h", optional "/s"
var hashratePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)\s*([kmgtpe])?(h)?(/s)?$`)

var (
	decimalThousand      = decimal.NewFromInt(1000)
	decimalHalfHundredth = decimal.New(5, -3)
	decimalMaxUint64     = decimalFromUint64(math.MaxUint64)
)

// ParseHashrate converts strings like "12.5 TH/s", "800mh" or "42" into
// hashes per second. A bare number is taken as H/s.
func ParseHashrate(text string) (uint64, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	m := hashratePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: hashrate %q", ErrParse, text)
	}
	num := m[1]
	if strings.HasPrefix(num, ".") {
		num = "0" + num
	}
	coef, err := decimal.NewFromString(num)
	if err != nil {
		return 0, fmt.Errorf("%w: hashrate %q: %v", ErrParse, text, err)
	}
	unit := hashrateUnitForPrefix(m[2])
	factor := decimalFromUint64(unit.factor)
	hashes := coef.Mul(factor).Round(0)
	if hashes.GreaterThan(decimalMaxUint64) {
		// FormatHashrate rounds values near MaxUint64 up to "18.45 EH".
		if hashes.Sub(decimalMaxUint64).GreaterThan(factor.Mul(decimalHalfHundredth)) {
			return 0, fmt.Errorf("%w: hashrate %q out of range", ErrParse, text)
		}
		return math.MaxUint64, nil
	}
	return hashes.BigInt().Uint64(), nil
}

// FormatHashrate renders v with the largest unit whose coefficient is >= 1,
// fixed to two decimals. Zero is "0 H".
func FormatHashrate(v uint64) string {
	if v == 0 {
		return "0 H"
	}
	idx := 0
	for i := len(hashrateUnits) - 1; i >= 0; i-- {
		if v >= hashrateUnits[i].factor {
			idx = i
			break
		}
	}
	val := decimalFromUint64(v)
	coef := val.Div(decimalFromUint64(hashrateUnits[idx].factor)).Round(2)
	if idx < len(hashrateUnits)-1 && coef.GreaterThanOrEqual(decimalThousand) {
		idx++
		coef = val.Div(decimalFromUint64(hashrateUnits[idx].factor)).Round(2)
	}
	return coef.StringFixed(2) + " " + hashrateUnits[idx].symbol
}

// formatHashrateRate is FormatHashrate with the per-second suffix used in
// chat replies.
func formatHashrateRate(v uint64) string {
	return FormatHashrate(v) + "/s"
}

func hashrateUnitForPrefix(prefix string) hashrateUnit {
	for _, u := range hashrateUnits {
		if u.prefix == prefix {
			return u
		}
	}
	return hashrateUnits[0]
}

func decimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
