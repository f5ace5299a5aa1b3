package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/telebot.v4"
)

// AnnouncementSink is one destination for donation announcements.
type AnnouncementSink interface {
	Name() string
	Announce(ctx context.Context, text string) error
}

type telegramSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

type telegramSink struct {
	bot    telegramSender
	chatID int64
}

func newTelegramSink(bot telegramSender, chatID int64) *telegramSink {
	return &telegramSink{bot: bot, chatID: chatID}
}

func (s *telegramSink) Name() string {
	return "telegram:" + strconv.FormatInt(s.chatID, 10)
}

// Announce sends text as Markdown. telebot has no per-request context, so the
// deadline is only checked up front; the bot's HTTP client bounds the send.
func (s *telegramSink) Announce(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(telebot.ChatID(s.chatID), text, telebot.ModeMarkdown)
	return err
}

type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type discordSink struct {
	session   discordSender
	channelID string
}

func newDiscordSink(session discordSender, channelID string) *discordSink {
	return &discordSink{session: session, channelID: strings.TrimSpace(channelID)}
}

func (s *discordSink) Name() string {
	return "discord:" + s.channelID
}

func (s *discordSink) Announce(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	_, err := s.session.ChannelMessageSend(s.channelID, text, discordgo.WithContext(ctx))
	if err != nil && isDiscordPermanentError(err) {
		return fmt.Errorf("discord channel %s rejected message (check bot permissions): %w", s.channelID, err)
	}
	return err
}

func isDiscordPermanentError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return true
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}

// openDiscordSession returns nil when no Discord token is configured. Only
// the REST API is used, so the gateway websocket is never opened.
func openDiscordSession(cfg Config) (*discordgo.Session, error) {
	token := strings.TrimSpace(cfg.DiscordBotToken)
	if token == "" {
		return nil, nil
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Client = &http.Client{Timeout: cfg.AnnounceTimeout}
	return dg, nil
}

// buildAnnouncementSinks returns the sinks in config order: Telegram chats
// first, then Discord channels. The result may be empty.
func buildAnnouncementSinks(cfg Config, tg telegramSender, dg discordSender) []AnnouncementSink {
	sinks := make([]AnnouncementSink, 0, len(cfg.DonationChatIDs)+len(cfg.DiscordChannelIDs))
	seen := make(map[string]struct{}, cap(sinks))
	add := func(s AnnouncementSink) {
		if _, dup := seen[s.Name()]; dup {
			return
		}
		seen[s.Name()] = struct{}{}
		sinks = append(sinks, s)
	}
	if tg != nil {
		for _, id := range cfg.DonationChatIDs {
			add(newTelegramSink(tg, id))
		}
	}
	if dg != nil {
		for _, ch := range cfg.DiscordChannelIDs {
			if strings.TrimSpace(ch) == "" {
				continue
			}
			add(newDiscordSink(dg, ch))
		}
	} else if len(cfg.DiscordChannelIDs) > 0 {
		logger.Warn("discord channels configured without discord.bot_token; skipping", "channels", len(cfg.DiscordChannelIDs))
	}
	return sinks
}
