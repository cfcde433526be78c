package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

// recordingHandler logs message texts. "PANIC" panics and "BLOCK" waits
// on release after closing started.
type recordingHandler struct {
	mu      sync.Mutex
	seen    []string
	started chan struct{}
	release chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (h *recordingHandler) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	h.mu.Lock()
	h.seen = append(h.seen, msg.Text)
	h.mu.Unlock()

	switch msg.Text {
	case "PANIC":
		panic("handler blew up")
	case "BLOCK":
		close(h.started)
		<-h.release
	}
}

func (h *recordingHandler) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func startSession(id int64, handler MessageHandler) *UserSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &UserSession{
		userId:  id,
		inbox:   make(chan SessionMessage, 10),
		ctx:     ctx,
		cancel:  cancel,
		handler: handler,
	}
	s.StartWorker()
	return s
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSessionWorker_ProcessesInOrder(t *testing.T) {
	h := newRecordingHandler()
	s := startSession(1, h)
	defer s.Stop()

	for _, text := range []string{"photo", "nav", "pdf"} {
		s.Send(SessionMessage{Text: text})
	}
	s.SendSync(SessionMessage{Text: "fav"})

	assert.Equal(t, []string{"photo", "nav", "pdf", "fav"}, h.texts())
}

func TestSessionWorker_SurvivesPanic(t *testing.T) {
	h := newRecordingHandler()
	s := startSession(1, h)
	defer s.Stop()

	s.SendSync(SessionMessage{Text: "PANIC"})
	s.SendSync(SessionMessage{Text: "after"})

	assert.Equal(t, []string{"PANIC", "after"}, h.texts())
}

func TestSessionWorker_UsersDoNotBlockEachOther(t *testing.T) {
	slow := newRecordingHandler()
	a := startSession(1, slow)
	defer a.Stop()
	fast := newRecordingHandler()
	b := startSession(2, fast)
	defer b.Stop()

	go a.SendSync(SessionMessage{Text: "BLOCK"})
	waitClosed(t, slow.started, "first session to start")

	b.SendSync(SessionMessage{Text: "photo"})
	assert.Equal(t, []string{"photo"}, fast.texts())
	assert.Equal(t, []string{"BLOCK"}, slow.texts())

	close(slow.release)
}

func TestSessionWorker_SendSyncWaitsForHandler(t *testing.T) {
	h := newRecordingHandler()
	s := startSession(1, h)
	defer s.Stop()

	returned := make(chan struct{})
	go func() {
		s.SendSync(SessionMessage{Text: "BLOCK"})
		close(returned)
	}()
	waitClosed(t, h.started, "handler to start")

	select {
	case <-returned:
		t.Fatal("SendSync returned while the handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.release)
	waitClosed(t, returned, "SendSync to return")
}

func TestSessionWorker_StopReleasesQueuedSyncCallers(t *testing.T) {
	h := newRecordingHandler()
	s := startSession(1, h)

	go s.SendSync(SessionMessage{Text: "BLOCK"})
	waitClosed(t, h.started, "handler to start")

	pending := make([]chan struct{}, 3)
	for i := range pending {
		pending[i] = make(chan struct{})
		s.inbox <- SessionMessage{Text: "queued", Done: pending[i]}
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	close(h.release)

	waitClosed(t, stopped, "Stop to return")
	for _, done := range pending {
		waitClosed(t, done, "queued message to be released")
	}
}

func TestSessionWorker_SendAfterStop(t *testing.T) {
	h := newRecordingHandler()
	s := startSession(1, h)
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.SendSync(SessionMessage{Text: "late"})
		close(done)
	}()
	waitClosed(t, done, "SendSync on a stopped session")
}

func TestUserSession_SetResultKeepsOnlySuccess(t *testing.T) {
	s := &UserSession{userId: 1}

	res := successResult()
	s.setResult(&res, []string{"a", "b", "c"})
	assert.True(t, s.HasRecipes())
	s.recipes.Selected = 2

	next := successResult()
	s.setResult(&next, nil)
	assert.Equal(t, 0, s.SelectedRecipe(), "a new run starts on the first recipe")

	failed := pipeline.Result{Outcome: pipeline.OutcomeFinderFailed}
	s.setResult(&failed, nil)
	assert.False(t, s.HasRecipes())

	s.setResult(&res, nil)
	s.reset()
	assert.False(t, s.HasRecipes())
}
