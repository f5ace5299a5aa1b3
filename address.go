package main

import (
	"fmt"
	"strings"

	"github.com/kaspanet/kaspad/util"
)

// networkPrefixes maps node network names to their bech32 address prefix.
var networkPrefixes = map[string]util.Bech32Prefix{
	"mainnet": util.Bech32PrefixKaspa,
	"testnet": util.Bech32PrefixKaspaTest,
	"devnet":  util.Bech32PrefixKaspaDev,
	"simnet":  util.Bech32PrefixKaspaSim,
}

func prefixForNetwork(network string) (util.Bech32Prefix, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = "mainnet"
	}
	// kaspad reports testnets as "kaspa-testnet-11" etc.
	network = strings.TrimPrefix(network, "kaspa-")
	if i := strings.IndexByte(network, '-'); i > 0 {
		network = network[:i]
	}
	prefix, ok := networkPrefixes[network]
	if !ok {
		return util.Bech32PrefixUnknown, fmt.Errorf("unknown kaspa network %q", network)
	}
	return prefix, nil
}

// sanitizeAddress strips everything that cannot be part of a bech32 Kaspa
// address, keeping the ':' separating prefix and payload.
func sanitizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(addr))
	for _, r := range addr {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ':':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// validateKaspaAddress decodes addr locally and checks it belongs to the
// network identified by prefix. It returns the canonical encoding.
func validateKaspaAddress(addr string, prefix util.Bech32Prefix) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrParse)
	}
	if !strings.Contains(addr, ":") {
		return "", fmt.Errorf("%w: address %q has no network prefix", ErrParse, addr)
	}
	decoded, err := util.DecodeAddress(addr, prefix)
	if err != nil {
		return "", fmt.Errorf("%w: decode address: %v", ErrParse, err)
	}
	if !decoded.IsForPrefix(prefix) {
		return "", fmt.Errorf("%w: address %s is not valid for %s", ErrParse, addr, prefix)
	}
	return decoded.String(), nil
}
