// Package services holds outbound integrations; today that is the Telegram
// operator channel the settlement pipeline notifies about duplicate winners.
package services

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lotto-settlement/internal/lib/logger/sl"
	"lotto-settlement/internal/models"
)

// TelegramNotifier pushes settlement notifications to one operator chat.
// Send failures are logged and dropped: notifications are advisory and must
// never block or fail a settlement transaction.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

func NewTelegramNotifier(token string, chatID int64, log *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("services: telegram init: %w", err)
	}
	log.Info("telegram notifier ready", slog.String("account", bot.Self.UserName))
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}, nil
}

// DuplicateWinners tells the operator that a tier drew more than one winning
// ticket, so the pool will be split.
func (n *TelegramNotifier) DuplicateWinners(round uint64, tier models.Tier, count uint32) {
	text := fmt.Sprintf(
		"Round %d: %d tickets share the %s prize; pool will be split evenly.",
		round, count, tier)
	n.send(text)
}

func (n *TelegramNotifier) send(text string) {
	if n.chatID == 0 {
		n.log.Warn("telegram chat id not configured, dropping notification")
		return
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		n.log.Error("telegram send failed", sl.Err(err))
	}
}
