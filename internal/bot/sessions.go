package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// inboxSize bounds how many updates a user can queue while a pipeline run is
// in progress.
const inboxSize = 10

// sessionRegistry owns one UserSession per Telegram user. Sessions are
// created on first contact and live until stopAll.
type sessionRegistry struct {
	handler MessageHandler
	sender  MessageSender

	mu       sync.Mutex
	sessions map[int64]*UserSession
}

func newSessionRegistry(sender MessageSender, handler MessageHandler) *sessionRegistry {
	return &sessionRegistry{
		handler:  handler,
		sender:   sender,
		sessions: make(map[int64]*UserSession),
	}
}

// forUser returns the user's session, starting its worker on first use.
func (r *sessionRegistry) forUser(userId int64) *UserSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userId]; ok {
		return s
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &UserSession{
		userId:  userId,
		sender:  r.sender,
		handler: r.handler,
		inbox:   make(chan SessionMessage, inboxSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.StartWorker()
	r.sessions[userId] = s

	log.Info().Int64("userId", userId).Int("sessions", len(r.sessions)).Msg("started user session")
	return s
}

// stopAll stops every worker. Workers are stopped outside the lock since a
// running handler may take a while to return.
func (r *sessionRegistry) stopAll() {
	r.mu.Lock()
	running := make([]*UserSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		running = append(running, s)
	}
	r.mu.Unlock()

	for _, s := range running {
		s.Stop()
	}
	log.Info().Int("count", len(running)).Msg("stopped user sessions")
}
