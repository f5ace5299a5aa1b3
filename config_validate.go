package main

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// validateConfig runs the struct tag rules and then the checks tags cannot
// express. It returns the first problem found.
func validateConfig(cfg Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}

	prefix, err := prefixForNetwork(cfg.Network)
	if err != nil {
		return err
	}
	if _, err := validateKaspaAddress(cfg.DonationAddress, prefix); err != nil {
		return fmt.Errorf("donations.address: %w", err)
	}
	for key, addr := range map[string]string{
		"devfund.mining_address":   cfg.DevfundMiningAddress,
		"devfund.donation_address": cfg.DevfundDonationAddress,
	} {
		if addr == "" {
			continue
		}
		if _, err := validateKaspaAddress(addr, prefix); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if cfg.NodeRequestTimeout <= 0 {
		return fmt.Errorf("node.request_timeout_seconds must be > 0, got %s", cfg.NodeRequestTimeout)
	}
	if cfg.NodeProbeInterval < 0 {
		return fmt.Errorf("node.probe_interval_seconds cannot be negative")
	}
	if cfg.PollTimeout <= 0 {
		return fmt.Errorf("telegram.poll_timeout_seconds must be > 0, got %s", cfg.PollTimeout)
	}
	if cfg.TelegramTimeout <= cfg.PollTimeout {
		return fmt.Errorf("telegram.timeout_seconds (%s) must exceed poll_timeout_seconds (%s)", cfg.TelegramTimeout, cfg.PollTimeout)
	}
	if cfg.AnnounceTimeout <= 0 {
		return fmt.Errorf("donations.announce_timeout_seconds must be > 0, got %s", cfg.AnnounceTimeout)
	}
	if cfg.ResubscribeBackoffMin <= 0 {
		return fmt.Errorf("donations.resubscribe_backoff_min_seconds must be > 0, got %s", cfg.ResubscribeBackoffMin)
	}
	if cfg.ResubscribeBackoffMax < cfg.ResubscribeBackoffMin {
		return fmt.Errorf("donations.resubscribe_backoff_max_seconds (%s) must be >= the minimum (%s)", cfg.ResubscribeBackoffMax, cfg.ResubscribeBackoffMin)
	}
	if cfg.PriceTimeout <= 0 {
		return fmt.Errorf("price.timeout_seconds must be > 0, got %s", cfg.PriceTimeout)
	}
	if cfg.PriceDebounce < 0 || cfg.InfoDebounce < 0 {
		return fmt.Errorf("debounce windows cannot be negative")
	}
	return nil
}
