package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// menuCommands is the command menu Telegram shows next to the input field.
// handleCommand must accept every entry.
var menuCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "How to get recipe ideas"},
	{Command: "help", Description: "How to get recipe ideas"},
	{Command: "favorites", Description: "Show saved recipes"},
}

// RegisterCommands publishes menuCommands. A failure only costs the menu, so
// it is logged and startup continues.
func RegisterCommands(tg BotAPI) {
	if _, err := tg.Request(tgbotapi.NewSetMyCommands(menuCommands...)); err != nil {
		log.Error().Err(err).Msg("failed to register bot commands")
		return
	}
	log.Info().Int("count", len(menuCommands)).Msg("registered bot commands")
}
