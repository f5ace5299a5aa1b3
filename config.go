package main

import "time"

// Config is the flattened runtime configuration. It is built from
// defaultConfig, then config.toml, then .env and the process environment,
// then command-line flags.
type Config struct {
	// Telegram.
	TelegramToken   string `validate:"required"`
	TelegramAPIURL  string `validate:"omitempty,url"`
	PollTimeout     time.Duration
	TelegramTimeout time.Duration

	// Kaspa node.
	NodeAddress        string `validate:"required,hostname_port"`
	Network            string `validate:"oneof=mainnet testnet devnet simnet"`
	NodeRequestTimeout time.Duration
	NodeProbeInterval  time.Duration

	// Donation watcher.
	DonationAddress        string  `validate:"required"`
	DonationChatIDs        []int64 `validate:"dive,ne=0"`
	AnnounceTimeout        time.Duration
	ResubscribeBackoffMin  time.Duration
	ResubscribeBackoffMax  time.Duration
	MaxResubscribeAttempts int `validate:"gte=0"`

	// Discord announcements (optional).
	DiscordBotToken   string   // prefer DISCORD_BOT_TOKEN over the file
	DiscordChannelIDs []string `validate:"dive,numeric"`

	// Price oracle.
	FiatCurrency  string `validate:"required,alpha"`
	PriceBaseURL  string `validate:"required,url"`
	PriceTimeout  time.Duration
	PriceCacheTTL time.Duration

	// Per-chat command suppression windows.
	PriceDebounce time.Duration
	InfoDebounce  time.Duration

	// Devfund addresses; empty disables /devfund.
	DevfundMiningAddress   string
	DevfundDonationAddress string

	// Status HTTP server; empty disables it.
	StatusAddr string `validate:"omitempty,hostname_port"`

	// Logging.
	LogLevel     string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFile      string
	ErrorLogFile string
	LogStdout    bool
}
