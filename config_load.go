package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
)

// Environment variables. The first four keep the names older deployments of
// the bot already export.
const (
	envTelegramToken        = "TELEBOT_TOKEN"
	envDonationAddress      = "DONATION_ADDRESS"
	envDonationAnnouncement = "DONATION_ANNOUNCEMENT"
	envDonationAnnounce2    = "DONATION_ANNOUNCEMENT_2"
	envKaspadAddress        = "KASPAD_ADDRESS"
	envDiscordBotToken      = "DISCORD_BOT_TOKEN"
)

// loadConfig layers config.toml and the environment over defaultConfig. A
// missing config file is not an error; the bot can run from env vars alone.
// A missing .env file is also fine.
func loadConfig(configPath, envPath string) (Config, error) {
	cfg := defaultConfig()

	if configPath == "" {
		configPath = defaultConfigPath()
	}
	if fc, ok, err := loadBaseConfigFile(configPath); err != nil {
		return cfg, fmt.Errorf("config file: %w", err)
	} else if ok {
		if err := applyBaseConfig(&cfg, *fc); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", configPath, err)
		}
	} else {
		logger.Info("config file not found; using defaults and environment", "path", configPath)
		ensureExampleFiles(defaultDataDir)
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	cfg.DonationAddress = sanitizeAddress(cfg.DonationAddress)
	cfg.DevfundMiningAddress = sanitizeAddress(cfg.DevfundMiningAddress)
	cfg.DevfundDonationAddress = sanitizeAddress(cfg.DevfundDonationAddress)
	cfg.DonationChatIDs = uniqueChatIDs(cfg.DonationChatIDs)
	return cfg, nil
}

func loadTOMLFile[T any](path string) (*T, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg T
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, true, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, true, nil
}

func loadBaseConfigFile(path string) (*baseFileConfig, bool, error) {
	return loadTOMLFile[baseFileConfig](path)
}

func applyBaseConfig(cfg *Config, fc baseFileConfig) error {
	if fc.Telegram.Token != "" {
		cfg.TelegramToken = strings.TrimSpace(fc.Telegram.Token)
	}
	if fc.Telegram.APIURL != "" {
		cfg.TelegramAPIURL = strings.TrimSpace(fc.Telegram.APIURL)
	}
	if err := applySeconds(&cfg.PollTimeout, fc.Telegram.PollTimeoutSeconds, "telegram.poll_timeout_seconds"); err != nil {
		return err
	}
	if err := applySeconds(&cfg.TelegramTimeout, fc.Telegram.TimeoutSeconds, "telegram.timeout_seconds"); err != nil {
		return err
	}

	if fc.Node.Address != "" {
		cfg.NodeAddress = strings.TrimSpace(fc.Node.Address)
	}
	if fc.Node.Network != "" {
		cfg.Network = strings.ToLower(strings.TrimSpace(fc.Node.Network))
	}
	if err := applySeconds(&cfg.NodeRequestTimeout, fc.Node.RequestTimeoutSeconds, "node.request_timeout_seconds"); err != nil {
		return err
	}
	if err := applySeconds(&cfg.NodeProbeInterval, fc.Node.ProbeIntervalSeconds, "node.probe_interval_seconds"); err != nil {
		return err
	}

	if fc.Donations.Address != "" {
		cfg.DonationAddress = fc.Donations.Address
	}
	if len(fc.Donations.AnnounceChatIDs) > 0 {
		cfg.DonationChatIDs = append([]int64(nil), fc.Donations.AnnounceChatIDs...)
	}
	if err := applySeconds(&cfg.AnnounceTimeout, fc.Donations.AnnounceTimeoutSeconds, "donations.announce_timeout_seconds"); err != nil {
		return err
	}
	if err := applySeconds(&cfg.ResubscribeBackoffMin, fc.Donations.ResubscribeBackoffMinSecs, "donations.resubscribe_backoff_min_seconds"); err != nil {
		return err
	}
	if err := applySeconds(&cfg.ResubscribeBackoffMax, fc.Donations.ResubscribeBackoffMaxSecs, "donations.resubscribe_backoff_max_seconds"); err != nil {
		return err
	}
	if fc.Donations.MaxResubscribeAttempts != nil {
		cfg.MaxResubscribeAttempts = *fc.Donations.MaxResubscribeAttempts
	}

	if fc.Discord.BotToken != "" {
		cfg.DiscordBotToken = strings.TrimSpace(fc.Discord.BotToken)
	}
	if len(fc.Discord.ChannelIDs) > 0 {
		cfg.DiscordChannelIDs = cfg.DiscordChannelIDs[:0]
		for _, id := range fc.Discord.ChannelIDs {
			if id = strings.TrimSpace(id); id != "" {
				cfg.DiscordChannelIDs = append(cfg.DiscordChannelIDs, id)
			}
		}
	}

	if fc.Price.FiatCurrency != "" {
		cfg.FiatCurrency = strings.ToLower(strings.TrimSpace(fc.Price.FiatCurrency))
	}
	if fc.Price.BaseURL != "" {
		cfg.PriceBaseURL = strings.TrimSpace(fc.Price.BaseURL)
	}
	if err := applySeconds(&cfg.PriceTimeout, fc.Price.TimeoutSeconds, "price.timeout_seconds"); err != nil {
		return err
	}
	if err := applySeconds(&cfg.PriceCacheTTL, fc.Price.CacheTTLSeconds, "price.cache_ttl_seconds"); err != nil {
		return err
	}

	if err := applySeconds(&cfg.PriceDebounce, fc.Debounce.PriceSeconds, "debounce.price_seconds"); err != nil {
		return err
	}
	if err := applySeconds(&cfg.InfoDebounce, fc.Debounce.InfoSeconds, "debounce.info_seconds"); err != nil {
		return err
	}

	if fc.Devfund.MiningAddress != "" {
		cfg.DevfundMiningAddress = fc.Devfund.MiningAddress
	}
	if fc.Devfund.DonationAddress != "" {
		cfg.DevfundDonationAddress = fc.Devfund.DonationAddress
	}

	if fc.Server.StatusListen != nil {
		cfg.StatusAddr = strings.TrimSpace(*fc.Server.StatusListen)
	}

	if fc.Logging.Level != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(fc.Logging.Level))
	}
	if fc.Logging.File != nil {
		cfg.LogFile = strings.TrimSpace(*fc.Logging.File)
	}
	if fc.Logging.ErrorFile != nil {
		cfg.ErrorLogFile = strings.TrimSpace(*fc.Logging.ErrorFile)
	}
	if fc.Logging.Stdout != nil {
		cfg.LogStdout = *fc.Logging.Stdout
	}
	return nil
}

func applySeconds(dst *time.Duration, secs *int, key string) error {
	if secs == nil {
		return nil
	}
	if *secs < 0 {
		return fmt.Errorf("%s cannot be negative, got %d", key, *secs)
	}
	*dst = time.Duration(*secs) * time.Second
	return nil
}

// applyEnvOverrides reads the bot's environment variables through lookup.
// Set variables win over the config file.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(envTelegramToken); ok {
		cfg.TelegramToken = v
	}
	if v, ok := get(envDonationAddress); ok {
		cfg.DonationAddress = v
	}
	if v, ok := get(envKaspadAddress); ok {
		cfg.NodeAddress = v
	}
	if v, ok := get(envDiscordBotToken); ok {
		cfg.DiscordBotToken = v
	}
	for _, key := range []string{envDonationAnnouncement, envDonationAnnounce2} {
		v, ok := get(key)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be a telegram chat id, got %q", key, v)
		}
		cfg.DonationChatIDs = append(cfg.DonationChatIDs, id)
	}
	return nil
}

func uniqueChatIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
