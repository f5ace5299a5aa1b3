package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml"
)

const exampleEnvFile = `# Environment overrides for kaspabot. Copy to .env next to the binary.
TELEBOT_TOKEN=
DONATION_ADDRESS=
# Telegram chat ids that receive donation announcements.
DONATION_ANNOUNCEMENT=
DONATION_ANNOUNCEMENT_2=
# KASPAD_ADDRESS=localhost:16110
# DISCORD_BOT_TOKEN=
`

func ensureExampleFiles(dataDir string) {
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	examplesDir := filepath.Join(dataDir, "config", "examples")
	if err := os.MkdirAll(examplesDir, 0o755); err != nil {
		logger.Warn("create examples directory for example configs failed", "dir", examplesDir, "error", err)
		return
	}
	ensureExampleFile(filepath.Join(examplesDir, "config.toml.example"), exampleConfigBytes())
	ensureExampleFile(filepath.Join(examplesDir, "env.example"), []byte(exampleEnvFile))
}

func ensureExampleFile(path string, contents []byte) {
	if len(contents) == 0 {
		return
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		logger.Warn("write example config failed", "path", path, "error", err)
	}
}

func exampleHeader(text string) []byte {
	return fmt.Appendf(nil, "# Generated %s example (copy to data/config/config.toml and edit)\n\n", text)
}

func baseConfigDocComments() []byte {
	return []byte(`# Key notes
# - [telegram].token: bot token from @BotFather; TELEBOT_TOKEN overrides it.
# - [node].address: kaspad gRPC host:port; KASPAD_ADDRESS overrides it.
# - [node].network: mainnet, testnet, devnet or simnet (address prefix check).
# - [donations].address: watched for incoming UTXOs; DONATION_ADDRESS overrides it.
# - [donations].announce_chat_ids: Telegram chats that get announcements.
# - [donations].max_resubscribe_attempts: 0 retries forever.
# - [discord]: optional second announcement channel set (REST only).
# - [debounce]: per-chat suppression windows for repeated commands.
# - [server].status_listen: /metrics and /healthz; "" disables.
#
`)
}

func buildBaseFileConfig(cfg Config) baseFileConfig {
	secs := func(d time.Duration) *int { return intPtr(int(d / time.Second)) }
	return baseFileConfig{
		Telegram: telegramConfig{
			Token:              cfg.TelegramToken,
			APIURL:             cfg.TelegramAPIURL,
			PollTimeoutSeconds: secs(cfg.PollTimeout),
			TimeoutSeconds:     secs(cfg.TelegramTimeout),
		},
		Node: nodeConfig{
			Address:               cfg.NodeAddress,
			Network:               cfg.Network,
			RequestTimeoutSeconds: secs(cfg.NodeRequestTimeout),
			ProbeIntervalSeconds:  secs(cfg.NodeProbeInterval),
		},
		Donations: donationsConfig{
			Address:                   cfg.DonationAddress,
			AnnounceChatIDs:           cfg.DonationChatIDs,
			AnnounceTimeoutSeconds:    secs(cfg.AnnounceTimeout),
			ResubscribeBackoffMinSecs: secs(cfg.ResubscribeBackoffMin),
			ResubscribeBackoffMaxSecs: secs(cfg.ResubscribeBackoffMax),
			MaxResubscribeAttempts:    intPtr(cfg.MaxResubscribeAttempts),
		},
		Discord: discordConfig{
			BotToken:   cfg.DiscordBotToken,
			ChannelIDs: cfg.DiscordChannelIDs,
		},
		Price: priceConfig{
			FiatCurrency:    cfg.FiatCurrency,
			BaseURL:         cfg.PriceBaseURL,
			TimeoutSeconds:  secs(cfg.PriceTimeout),
			CacheTTLSeconds: secs(cfg.PriceCacheTTL),
		},
		Debounce: debounceConfig{
			PriceSeconds: secs(cfg.PriceDebounce),
			InfoSeconds:  secs(cfg.InfoDebounce),
		},
		Devfund: devfundConfig{
			MiningAddress:   cfg.DevfundMiningAddress,
			DonationAddress: cfg.DevfundDonationAddress,
		},
		Server: serverConfig{
			StatusListen: stringPtr(cfg.StatusAddr),
		},
		Logging: loggingConfig{
			Level:     cfg.LogLevel,
			File:      stringPtr(cfg.LogFile),
			ErrorFile: stringPtr(cfg.ErrorLogFile),
			Stdout:    boolPtr(cfg.LogStdout),
		},
	}
}

func exampleConfigBytes() []byte {
	cfg := defaultConfig()
	cfg.TelegramToken = "YOUR_TELEGRAM_BOT_TOKEN"
	cfg.DonationAddress = "kaspa:YOUR_DONATION_ADDRESS"
	cfg.DonationChatIDs = []int64{-1001234567890}
	data, err := toml.Marshal(buildBaseFileConfig(cfg))
	if err != nil {
		logger.Warn("encode config example failed", "error", err)
		return nil
	}
	out := exampleHeader("base config")
	out = append(out, baseConfigDocComments()...)
	return append(out, data...)
}
