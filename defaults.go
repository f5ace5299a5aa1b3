package main

import (
	"path/filepath"
	"time"
)

const (
	defaultDataDir = "data"

	defaultNodeAddress        = "localhost:16110"
	defaultNetwork            = "mainnet"
	defaultNodeRequestTimeout = 10 * time.Second
	defaultNodeProbeInterval  = 30 * time.Second

	defaultPollTimeout     = 10 * time.Second
	defaultTelegramTimeout = 30 * time.Second

	defaultAnnounceTimeout       = 10 * time.Second
	defaultResubscribeBackoffMin = time.Second
	defaultResubscribeBackoffMax = time.Minute

	defaultFiatCurrency  = "usd"
	defaultPriceTimeout  = 5 * time.Second
	defaultPriceCacheTTL = time.Minute

	defaultPriceDebounce = time.Minute
	defaultInfoDebounce  = time.Hour

	defaultStatusAddr = "127.0.0.1:9464"
	defaultLogLevel   = "info"
)

func defaultConfig() Config {
	return Config{
		PollTimeout:            defaultPollTimeout,
		TelegramTimeout:        defaultTelegramTimeout,
		NodeAddress:            defaultNodeAddress,
		Network:                defaultNetwork,
		NodeRequestTimeout:     defaultNodeRequestTimeout,
		NodeProbeInterval:      defaultNodeProbeInterval,
		AnnounceTimeout:        defaultAnnounceTimeout,
		ResubscribeBackoffMin:  defaultResubscribeBackoffMin,
		ResubscribeBackoffMax:  defaultResubscribeBackoffMax,
		MaxResubscribeAttempts: 0,
		FiatCurrency:           defaultFiatCurrency,
		PriceBaseURL:           defaultPriceBaseURL,
		PriceTimeout:           defaultPriceTimeout,
		PriceCacheTTL:          defaultPriceCacheTTL,
		PriceDebounce:          defaultPriceDebounce,
		InfoDebounce:           defaultInfoDebounce,
		StatusAddr:             defaultStatusAddr,
		LogLevel:               defaultLogLevel,
		LogFile:                filepath.Join(defaultDataDir, "logs", "kaspabot.log"),
		ErrorLogFile:           filepath.Join(defaultDataDir, "logs", "errors.log"),
	}
}

func defaultConfigPath() string {
	return filepath.Join(defaultDataDir, "config", "config.toml")
}
