package main

// Durations are whole seconds on disk. Pointer fields distinguish "unset"
// from an explicit zero.

type telegramConfig struct {
	Token              string `toml:"token"`
	APIURL             string `toml:"api_url"`
	PollTimeoutSeconds *int   `toml:"poll_timeout_seconds"`
	TimeoutSeconds     *int   `toml:"timeout_seconds"`
}

type nodeConfig struct {
	Address               string `toml:"address"`
	Network               string `toml:"network"`
	RequestTimeoutSeconds *int   `toml:"request_timeout_seconds"`
	ProbeIntervalSeconds  *int   `toml:"probe_interval_seconds"`
}

type donationsConfig struct {
	Address                   string  `toml:"address"`
	AnnounceChatIDs           []int64 `toml:"announce_chat_ids"`
	AnnounceTimeoutSeconds    *int    `toml:"announce_timeout_seconds"`
	ResubscribeBackoffMinSecs *int    `toml:"resubscribe_backoff_min_seconds"`
	ResubscribeBackoffMaxSecs *int    `toml:"resubscribe_backoff_max_seconds"`
	MaxResubscribeAttempts    *int    `toml:"max_resubscribe_attempts"`
}

type discordConfig struct {
	BotToken   string   `toml:"bot_token"`
	ChannelIDs []string `toml:"channel_ids"`
}

type priceConfig struct {
	FiatCurrency    string `toml:"fiat_currency"`
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  *int   `toml:"timeout_seconds"`
	CacheTTLSeconds *int   `toml:"cache_ttl_seconds"`
}

type debounceConfig struct {
	PriceSeconds *int `toml:"price_seconds"`
	InfoSeconds  *int `toml:"info_seconds"`
}

type devfundConfig struct {
	MiningAddress   string `toml:"mining_address"`
	DonationAddress string `toml:"donation_address"`
}

type serverConfig struct {
	StatusListen *string `toml:"status_listen"` // nil = default, "" = disabled
}

type loggingConfig struct {
	Level     string  `toml:"level"`
	File      *string `toml:"file"`
	ErrorFile *string `toml:"error_file"`
	Stdout    *bool   `toml:"stdout"`
}

type baseFileConfig struct {
	Telegram  telegramConfig  `toml:"telegram"`
	Node      nodeConfig      `toml:"node"`
	Donations donationsConfig `toml:"donations"`
	Discord   discordConfig   `toml:"discord"`
	Price     priceConfig     `toml:"price"`
	Debounce  debounceConfig  `toml:"debounce"`
	Devfund   devfundConfig   `toml:"devfund"`
	Server    serverConfig    `toml:"server"`
	Logging   loggingConfig   `toml:"logging"`
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool {
	return &v
}
func stringPtr(v string) *string { return &v }
