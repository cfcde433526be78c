package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/rs/zerolog/log"
)

// typingInterval refreshes the typing indicator before Telegram's ~5s expiry.
const typingInterval = 4 * time.Second

// messageKind tells the worker which handler a queued update goes to.
type messageKind int

const (
	kindCommand messageKind = iota
	kindPhoto
	kindDocument
	kindCallback
)

// SessionMessage is one update queued for a user's worker.
type SessionMessage struct {
	Kind messageKind
	Ctx  context.Context
	// Done is closed once the worker has handled (or dropped) the message.
	Done chan struct{}

	Message       *tgbotapi.Message
	CallbackQuery *tgbotapi.CallbackQuery
	Text          string
}

// MessageSender is the part of the Telegram API a session replies through.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MessageHandler processes messages taken off a session's inbox.
type MessageHandler interface {
	HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage)
}

// RecipeBrowserState is the presentation state of the user's latest
// successful run: which recipes were found and which one the card shows.
type RecipeBrowserState struct {
	Result    *pipeline.Result
	Reasons   []string // Reason text per recipe, fixed for the run
	Selected  int      // Index of the recipe shown on the card
	CardMsgID int      // Message carrying the card and its buttons
}

func (st RecipeBrowserState) hasRecipes() bool {
	return st.Result != nil && len(st.Result.Recipes) > 0
}

// UserSession serializes everything one user does. A single worker goroutine
// drains the inbox, so handlers may touch recipes directly; the exported
// accessors lock for callers outside the worker.
type UserSession struct {
	userId int64
	sender MessageSender

	inbox   chan SessionMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handler MessageHandler

	mu      sync.Mutex
	recipes RecipeBrowserState
}

// HasRecipes reports whether the last run found recipes.
func (s *UserSession) HasRecipes() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipes.hasRecipes()
}

// SelectedRecipe returns the index of the recipe shown on the card.
func (s *UserSession) SelectedRecipe() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipes.Selected
}

// setResult starts a new browser state for res. Only a successful run is
// kept, so buttons from an earlier card go stale after any other outcome.
func (s *UserSession) setResult(res *pipeline.Result, reasons []string) {
	next := RecipeBrowserState{}
	if res != nil && res.Outcome == pipeline.OutcomeSuccess {
		next.Result = res
		next.Reasons = reasons
	}

	s.mu.Lock()
	s.recipes = next
	s.mu.Unlock()
}

func (s *UserSession) reset() {
	s.mu.Lock()
	s.recipes = RecipeBrowserState{}
	s.mu.Unlock()
	log.Info().Int64("userId", s.userId).Msg("cleared recipe browser")
}

// Replies

func (s *UserSession) reply(text string, a ...any) tgbotapi.Message {
	return s.replyMarkdown(formatReplyText(text, a...))
}

func (s *UserSession) replyMarkdown(text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(s.userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return s.replyWithMessage(msg)
}

func (s *UserSession) replyWithError(err error) tgbotapi.Message {
	log.Error().Stack().Err(err).Int64("userId", s.userId).Send()
	return s.replyMarkdown(formatReplyText(MsgUnexpectedErr, escapeMarkdown(err.Error())))
}

func (s *UserSession) replyWithMessage(msg tgbotapi.MessageConfig) tgbotapi.Message {
	msg.ChatID = s.userId
	sent, err := s.sender.Send(msg)
	if err != nil {
		log.Error().Stack().
			Int64("userId", s.userId).
			Err(fmt.Errorf("send reply: %w", err)).
			Send()
		return sent
	}
	log.Debug().Int64("userId", s.userId).Int("messageID", sent.MessageID).Msg("sent reply")
	return sent
}

// sendChatAction goes through Request because Telegram answers it with a
// bool rather than a Message.
func (s *UserSession) sendChatAction(action string) {
	if _, err := s.sender.Request(tgbotapi.NewChatAction(s.userId, action)); err != nil {
		log.Debug().Err(err).Int64("userId", s.userId).Str("action", action).Msg("chat action failed")
	}
}

// startTypingLoop keeps "typing..." visible until ctx is done.
func (s *UserSession) startTypingLoop(ctx context.Context) {
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()

	for {
		s.sendChatAction(tgbotapi.ChatTyping)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Worker

// StartWorker launches the goroutine that drains the inbox.
func (s *UserSession) StartWorker() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msg := <-s.inbox:
				s.handle(msg)
			case <-s.ctx.Done():
				s.dropQueued()
				return
			}
		}
	}()
}

// dropQueued releases callers still waiting on messages that will never run.
func (s *UserSession) dropQueued() {
	for {
		select {
		case msg := <-s.inbox:
			release(msg)
		default:
			return
		}
	}
}

func (s *UserSession) handle(msg SessionMessage) {
	defer release(msg)
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int64("userId", s.userId).
				Interface("panic", r).
				Msg("session handler panicked")
		}
	}()

	if s.handler == nil {
		log.Error().Int64("userId", s.userId).Msg("session has no handler")
		return
	}
	s.handler.HandleSessionMessage(msg.Ctx, s, msg)
}

func release(msg SessionMessage) {
	if msg.Done != nil {
		close(msg.Done)
	}
}

// Send queues msg without waiting for it to be handled. Messages sent to a
// stopped session are released immediately.
func (s *UserSession) Send(msg SessionMessage) {
	if s.ctx.Err() != nil {
		release(msg)
		return
	}
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
		release(msg)
	}
}

// SendSync queues msg and blocks until the worker is done with it.
func (s *UserSession) SendSync(msg SessionMessage) {
	msg.Done = make(chan struct{})
	s.Send(msg)
	<-msg.Done
}

// Stop cancels the worker and waits for the current handler to return.
func (s *UserSession) Stop() {
	s.cancel()
	s.wg.Wait()
}
