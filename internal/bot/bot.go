package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// RecipeFinder runs a photo through the recipe pipeline.
type RecipeFinder interface {
	Run(ctx context.Context, img recipe.Image) pipeline.Result
}

// Renderer produces the PDF export of a recipe.
type Renderer interface {
	Render(ctx context.Context, d recipe.Detail) ([]byte, error)
}

// FavoritesStore persists the user's saved recipes.
type FavoritesStore interface {
	Add(d recipe.Detail) (storage.AddResult, error)
	List() ([]recipe.Detail, error)
}

// Bot routes Telegram updates to per-user session workers.
type Bot struct {
	tg         BotAPI
	sessions   *sessionRegistry
	recipes    RecipeFinder
	renderer   Renderer
	favorites  FavoritesStore
	downloader *ImageDownloader
}

func NewBot(tg BotAPI, recipes RecipeFinder, renderer Renderer, favorites FavoritesStore) *Bot {
	b := &Bot{
		tg:         tg,
		recipes:    recipes,
		renderer:   renderer,
		favorites:  favorites,
		downloader: NewImageDownloader(),
	}
	b.sessions = newSessionRegistry(tg, b)
	return b
}

// HandleUpdate queues the update on its user's session and returns without
// waiting for it to be handled.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync waits for the session worker to finish the update.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// Shutdown stops every session worker.
func (b *Bot) Shutdown() {
	b.sessions.stopAll()
}

func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	msg := SessionMessage{Ctx: ctx}
	var userId int64

	switch {
	case update.CallbackQuery != nil:
		userId = update.CallbackQuery.From.ID
		msg.Kind = kindCallback
		msg.CallbackQuery = update.CallbackQuery
	case update.Message != nil && update.Message.From != nil:
		m := update.Message
		userId = m.From.ID
		msg.Message = m
		switch {
		case len(m.Photo) > 0:
			msg.Kind = kindPhoto
		case m.Document != nil:
			msg.Kind = kindDocument
		default:
			msg.Kind = kindCommand
			msg.Text = m.Text
		}
		log.Info().Int64("userId", userId).Str("text", m.Text).Int("photos", len(m.Photo)).Msg("got message")
	default:
		return
	}

	session := b.sessions.forUser(userId)
	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage runs on the user's worker goroutine.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Kind {
	case kindCallback:
		b.handleCallbackQuery(ctx, session, msg.CallbackQuery)
	case kindPhoto:
		b.handlePhotoMessage(ctx, session, msg.Message)
	case kindDocument:
		b.handleDocumentMessage(ctx, session, msg.Message)
	case kindCommand:
		b.handleCommand(ctx, session, msg.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	command, _ := parseCommand(strings.TrimSpace(message.Text))
	switch command {
	case "/start", "/help":
		session.reply(MsgWelcome)
	case "/favorites":
		b.handleFavoritesCommand(session)
	default:
		session.reply(MsgSendPhotoPrompt)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	if strings.HasPrefix(query.Data, recipeCallbackPrefix) {
		b.handleRecipeCallback(ctx, session, query)
		return
	}
	// Unknown buttons still get answered so the client stops spinning.
	b.answerCallback(query, "")
}

func (b *Bot) answerCallback(query *tgbotapi.CallbackQuery, text string) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(query.ID, text)); err != nil {
		log.Debug().Err(err).Str("data", query.Data).Msg("failed to answer callback query")
	}
}
