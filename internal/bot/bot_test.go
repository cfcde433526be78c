package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *botApiMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *botApiMock) GetFileDirectURL(fileID string) (string, error) {
	args := m.Called(fileID)
	return args.Get(0).(string), args.Error(1)
}

// stubFinder returns a fixed result and records the image it was given.
type stubFinder struct {
	mu     sync.Mutex
	result pipeline.Result
	images []recipe.Image
}

func (f *stubFinder) Run(ctx context.Context, img recipe.Image) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, img)
	return f.result
}

type stubRenderer struct {
	data []byte
	err  error
}

func (r *stubRenderer) Render(ctx context.Context, d recipe.Detail) ([]byte, error) {
	return r.data, r.err
}

func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")
	os.Exit(m.Run())
}

type testEnv struct {
	userId    int64
	tg        *botApiMock
	bot       *Bot
	session   *UserSession
	finder    *stubFinder
	renderer  *stubRenderer
	favorites *storage.Favorites
}

func setup(t *testing.T) *testEnv {
	env := &testEnv{
		userId:    1,
		tg:        new(botApiMock),
		finder:    &stubFinder{},
		renderer:  &stubRenderer{data: []byte("%PDF-1.3")},
		favorites: storage.NewFavorites(filepath.Join(t.TempDir(), "favorites.json")),
	}
	env.bot = NewBot(env.tg, env.finder, env.renderer, env.favorites)
	env.session = env.bot.sessions.forUser(env.userId)
	t.Cleanup(env.bot.Shutdown)

	// Typing indicators are sent from a goroutine and may or may not land.
	env.tg.On("Request", mock.AnythingOfType("tgbotapi.ChatActionConfig")).
		Return(&tgbotapi.APIResponse{Ok: true}, nil).Maybe()
	return env
}

// servePhotos makes GetFileDirectURL resolve file IDs to a test server that
// returns the file ID as the image body.
func (env *testEnv) servePhotos(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(strings.TrimPrefix(r.URL.Path, "/")))
	}))
	t.Cleanup(ts.Close)
	env.tg.On("GetFileDirectURL", mock.Anything).Return(ts.URL+"/large", nil)
}

func makeUpdateWithMessageText(userId int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userId},
			Text: text,
		},
	}
}

func makePhotoUpdate(userId int64) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userId},
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 1280},
			},
		},
	}
}

func makeCallbackUpdate(userId int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: userId},
			Message: &tgbotapi.Message{MessageID: messageID},
			Data:    data,
		},
	}
}

func makeMessage(userId int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func testRecipes() []recipe.Detail {
	return []recipe.Detail{
		{
			ID: 11, Title: "Tomato Soup", ReadyInMinutes: 30, Servings: 4,
			Ingredients:  []recipe.Ingredient{{OriginalString: "2 tomatoes"}, {}},
			Instructions: "<ol><li>Chop</li><li>Simmer</li></ol>",
		},
		{ID: 22, Title: "Tomato Salad", Ingredients: []recipe.Ingredient{{Name: "tomato"}}},
		{ID: 33, Title: "Bruschetta", ReadyInMinutes: 15},
	}
}

func successResult() pipeline.Result {
	return pipeline.Result{
		RunID:    "run-1",
		Outcome:  pipeline.OutcomeSuccess,
		Concepts: recipe.NewConceptSet("tomato", "basil"),
		Recipes:  testRecipes(),
	}
}

// withRecipes puts a successful run on the session as if its card was sent
// as message cardID.
func (env *testEnv) withRecipes(cardID int) {
	res := successResult()
	env.session.setResult(&res, []string{"reason one", "reason two", "reason three"})
	env.session.recipes.CardMsgID = cardID
}

func TestHandleUpdate_Start(t *testing.T) {
	env := setup(t)

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgWelcome))).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(env.userId, "/start"))
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_HelpWithBotName(t *testing.T) {
	env := setup(t)

	env.tg.On("Send", makeMessage(env.userId, formatReplyText(MsgWelcome))).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(env.userId, "/help@recipebot"))
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_PlainTextPromptsForPhoto(t *testing.T) {
	env := setup(t)

	env.tg.On("Send", makeMessage(env.userId, MsgSendPhotoPrompt)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(env.userId, "what can I cook?"))
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_DocumentNotAnImage(t *testing.T) {
	env := setup(t)

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: env.userId},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
	}}
	env.tg.On("Send", makeMessage(env.userId, MsgNotAnImage)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), update)
	env.tg.AssertExpectations(t)
	assert.Empty(t, env.finder.images)
}

func TestHandlePhoto_UsesLargestSize(t *testing.T) {
	env := setup(t)
	env.servePhotos(t)
	env.finder.result = pipeline.Result{Outcome: pipeline.OutcomeNoConcepts}

	env.tg.On("Send", makeMessage(env.userId, MsgNoConcepts)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makePhotoUpdate(env.userId))
	env.tg.AssertExpectations(t)
	env.tg.AssertCalled(t, "GetFileDirectURL", "large")
	require.Len(t, env.finder.images, 1)
	assert.Equal(t, []byte("large"), env.finder.images[0].Data)
	assert.Equal(t, "image/jpeg", env.finder.images[0].MIMEType)
	assert.False(t, env.session.HasRecipes())
}

func TestHandlePhoto_DownloadFailure(t *testing.T) {
	env := setup(t)
	env.tg.On("GetFileDirectURL", "large").Return("", errors.New("file is too big"))

	env.tg.On("Send", makeMessage(env.userId, "Could not download the photo: failed to get file URL: file is too big")).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makePhotoUpdate(env.userId))
	env.tg.AssertExpectations(t)
	assert.Empty(t, env.finder.images)
}

func TestHandlePhoto_FailureOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		result pipeline.Result
		want   string
	}{
		{
			name:   "extraction failed",
			result: pipeline.Result{Outcome: pipeline.OutcomeExtractionFailed, Err: errors.New("timeout")},
			want:   "Image recognition failed: timeout",
		},
		{
			name: "finder failed",
			result: pipeline.Result{
				Outcome:  pipeline.OutcomeFinderFailed,
				Concepts: recipe.NewConceptSet("tomato"),
				Err:      errors.New("quota exceeded"),
			},
			want: "🔍 Detected ingredients: Tomato\n\nError fetching recipes: quota exceeded",
		},
		{
			name: "no recipes",
			result: pipeline.Result{
				Outcome:  pipeline.OutcomeNoRecipes,
				Concepts: recipe.NewConceptSet("tomato", "olive oil"),
			},
			want: "🔍 Detected ingredients: Tomato, Olive Oil\n\n" + MsgNoRecipes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			env.servePhotos(t)
			env.finder.result = tt.result

			env.tg.On("Send", makeMessage(env.userId, tt.want)).Return(tgbotapi.Message{}, nil).Once()

			env.bot.handleUpdateSync(context.Background(), makePhotoUpdate(env.userId))
			env.tg.AssertExpectations(t)
			assert.False(t, env.session.HasRecipes())
		})
	}
}

func TestHandlePhoto_SuccessSendsSummaryAndCard(t *testing.T) {
	env := setup(t)
	env.servePhotos(t)
	env.finder.result = successResult()

	env.tg.On("Send", makeMessage(env.userId, "🔍 Detected ingredients: Tomato, Basil\nFound 3 recipes for you:")).
		Return(tgbotapi.Message{MessageID: 41}, nil).Once()
	env.tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		return ok && strings.HasPrefix(msg.Text, "*Tomato Soup*") && len(kb.InlineKeyboard) == 2
	})).Return(tgbotapi.Message{MessageID: 42}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makePhotoUpdate(env.userId))
	env.tg.AssertExpectations(t)

	assert.True(t, env.session.HasRecipes())
	assert.Equal(t, 0, env.session.SelectedRecipe())
	assert.Equal(t, 42, env.session.recipes.CardMsgID)
	assert.Len(t, env.session.recipes.Reasons, 3)
}

func TestHandlePhoto_FailureClearsPreviousRecipes(t *testing.T) {
	env := setup(t)
	env.servePhotos(t)
	env.withRecipes(42)
	env.finder.result = pipeline.Result{Outcome: pipeline.OutcomeNoConcepts}

	env.tg.On("Send", makeMessage(env.userId, MsgNoConcepts)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makePhotoUpdate(env.userId))
	env.tg.AssertExpectations(t)
	assert.False(t, env.session.HasRecipes())
}

func TestRecipeCallback_NavEditsCard(t *testing.T) {
	env := setup(t)
	env.withRecipes(42)

	env.tg.On("Request", tgbotapi.NewCallback("cb-1", "")).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	env.tg.On("Request", mock.MatchedBy(func(edit tgbotapi.EditMessageTextConfig) bool {
		return edit.MessageID == 42 &&
			strings.HasPrefix(edit.Text, "*Bruschetta*") &&
			edit.ReplyMarkup.InlineKeyboard[0][2].Text == "· 3 ·"
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, 42, "recipe:nav:2"))
	env.tg.AssertExpectations(t)
	assert.Equal(t, 2, env.session.SelectedRecipe())
}

func TestRecipeCallback_NavEditFailureSendsNewCard(t *testing.T) {
	env := setup(t)
	env.withRecipes(42)

	env.tg.On("Request", tgbotapi.NewCallback("cb-1", "")).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	env.tg.On("Request", mock.AnythingOfType("tgbotapi.EditMessageTextConfig")).
		Return(&tgbotapi.APIResponse{}, errors.New("message to edit not found")).Once()
	env.tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return strings.HasPrefix(msg.Text, "*Tomato Salad*")
	})).Return(tgbotapi.Message{MessageID: 50}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, 42, "recipe:nav:1"))
	env.tg.AssertExpectations(t)
	assert.Equal(t, 50, env.session.recipes.CardMsgID)
}

func TestRecipeCallback_Stale(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(env *testEnv)
		messageID int
		data      string
	}{
		{name: "no recipes", prepare: func(env *testEnv) {}, messageID: 42, data: "recipe:pdf:0"},
		{name: "older card", prepare: func(env *testEnv) { env.withRecipes(42) }, messageID: 7, data: "recipe:nav:1"},
		{name: "index out of range", prepare: func(env *testEnv) { env.withRecipes(42) }, messageID: 42, data: "recipe:fav:5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			tt.prepare(env)

			env.tg.On("Request", tgbotapi.NewCallback("cb-1", "")).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
			env.tg.On("Send", makeMessage(env.userId, MsgSendNewPhoto)).Return(tgbotapi.Message{}, nil).Once()

			env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, tt.messageID, tt.data))
			env.tg.AssertExpectations(t)
		})
	}
}

func TestRecipeCallback_PDF(t *testing.T) {
	env := setup(t)
	env.withRecipes(42)

	env.tg.On("Request", tgbotapi.NewCallback("cb-1", MsgPreparingPDF)).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	env.tg.On("Send", mock.MatchedBy(func(doc tgbotapi.DocumentConfig) bool {
		file, ok := doc.File.(tgbotapi.FileBytes)
		return ok && doc.ChatID == env.userId && file.Name == "Tomato Salad.pdf" && string(file.Bytes) == "%PDF-1.3"
	})).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, 42, "recipe:pdf:1"))
	env.tg.AssertExpectations(t)
}

func TestRecipeCallback_PDFRenderFailure(t *testing.T) {
	env := setup(t)
	env.withRecipes(42)
	env.renderer.err = errors.New("font missing")

	env.tg.On("Request", tgbotapi.NewCallback("cb-1", MsgPreparingPDF)).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	env.tg.On("Send", makeMessage(env.userId, "Could not create the PDF: font missing")).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, 42, "recipe:pdf:0"))
	env.tg.AssertExpectations(t)
}

func TestRecipeCallback_SaveFavorite(t *testing.T) {
	env := setup(t)
	env.withRecipes(42)

	env.tg.On("Request", tgbotapi.NewCallback("cb-1", MsgSavedToFavorites)).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	env.tg.On("Request", tgbotapi.NewCallback("cb-1", MsgAlreadyInFavorites)).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, 42, "recipe:fav:0"))
	env.bot.handleUpdateSync(context.Background(), makeCallbackUpdate(env.userId, 42, "recipe:fav:0"))
	env.tg.AssertExpectations(t)

	favorites, err := env.favorites.List()
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, 11, favorites[0].ID)
}

func TestFavoritesCommand(t *testing.T) {
	env := setup(t)

	env.tg.On("Send", makeMessage(env.userId, MsgFavoritesEmpty)).Return(tgbotapi.Message{}, nil).Once()
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(env.userId, "/favorites"))

	for _, d := range testRecipes()[:2] {
		_, err := env.favorites.Add(d)
		require.NoError(t, err)
	}
	env.tg.On("Send", makeMessage(env.userId, MsgFavoritesHeader+"\n1. Tomato Soup (30 minutes)\n2. Tomato Salad")).
		Return(tgbotapi.Message{}, nil).Once()
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(env.userId, "/favorites"))

	env.tg.AssertExpectations(t)
}

func TestRenderRecipeCard(t *testing.T) {
	res := successResult()
	state := RecipeBrowserState{Result: &res, Reasons: []string{"Great with *basil*"}}

	card := renderRecipeCard(state)
	assert.Contains(t, card, "*Tomato Soup*\n⏱ Ready in 30 minutes | 🍽 Serves 4")
	assert.Contains(t, card, "Great with \\*basil\\*")
	assert.Contains(t, card, "• 2 tomatoes\n• Unknown ingredient\n")
	assert.Contains(t, card, "Chop\nSimmer")

	state.Selected = 2
	card = renderRecipeCard(state)
	assert.Contains(t, card, "Ready in 15 minutes | 🍽 Serves N/A")
	assert.NotContains(t, card, MsgCardWhyHeader)
	assert.Contains(t, card, MsgCardNoInstructions)
}

func TestRenderRecipeCard_TruncatesLongInstructions(t *testing.T) {
	res := pipeline.Result{
		Outcome: pipeline.OutcomeSuccess,
		Recipes: []recipe.Detail{{
			ID: 1, Title: "Long", SourceURL: "https://example.com/long",
			Instructions: strings.Repeat("stir the pot ", 1000),
		}},
	}

	card := renderRecipeCard(RecipeBrowserState{Result: &res})
	assert.LessOrEqual(t, len([]rune(card)), maxMessageLength)
	assert.True(t, strings.HasSuffix(card, "[Full recipe](https://example.com/long)"))
	assert.Contains(t, card, MsgCardTruncatedSuffix)
}

func TestRenderRecipeCard_CountsUTF16Units(t *testing.T) {
	// Each emoji is one rune but two UTF-16 code units.
	res := pipeline.Result{
		Outcome: pipeline.OutcomeSuccess,
		Recipes: []recipe.Detail{{
			ID: 1, Title: "Emoji", SourceURL: "https://example.com/emoji",
			Instructions: strings.Repeat("🍅🌿 ", 2000),
		}},
	}

	card := renderRecipeCard(RecipeBrowserState{Result: &res})
	assert.LessOrEqual(t, len(utf16.Encode([]rune(card))), maxMessageLength)
	assert.Greater(t, len(utf16.Encode([]rune(card))), maxMessageLength-10)
	assert.True(t, utf8.ValidString(card))
	assert.True(t, strings.HasSuffix(card, "[Full recipe](https://example.com/emoji)"))
}

func TestMakeRecipeKeyboard(t *testing.T) {
	kb := makeRecipeKeyboard(3, 1)
	require.Len(t, kb.InlineKeyboard, 2)
	nav := kb.InlineKeyboard[0]
	require.Len(t, nav, 3)
	assert.Equal(t, "1", nav[0].Text)
	assert.Equal(t, "· 2 ·", nav[1].Text)
	assert.Equal(t, "recipe:nav:2", *nav[2].CallbackData)

	actions := kb.InlineKeyboard[1]
	assert.Equal(t, BtnPDF, actions[0].Text)
	assert.Equal(t, "recipe:pdf:1", *actions[0].CallbackData)
	assert.Equal(t, "recipe:fav:1", *actions[1].CallbackData)

	single := makeRecipeKeyboard(1, 0)
	require.Len(t, single.InlineKeyboard, 1)
	assert.Equal(t, BtnSave, single.InlineKeyboard[0][1].Text)
}

func TestParseRecipeCallback(t *testing.T) {
	tests := []struct {
		data       string
		wantAction string
		wantIndex  int
		wantErr    bool
	}{
		{data: "recipe:nav:0", wantAction: actionNav, wantIndex: 0},
		{data: "recipe:pdf:2", wantAction: actionPDF, wantIndex: 2},
		{data: "recipe:fav:1", wantAction: actionFavorite, wantIndex: 1},
		{data: "recipe:nav", wantErr: true},
		{data: "recipe:nav:x", wantErr: true},
		{data: "recipe:nav:-1", wantErr: true},
		{data: "recipe:share:0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, index, err := parseRecipeCallback(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantIndex, index)
		})
	}
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", truncateMessage("short", 10, "…"))
	assert.Equal(t, "abcd…", truncateMessage("abcdefgh", 5, "…"))
	// A cut right after an escape drops the dangling backslash.
	assert.Equal(t, "ab…", truncateMessage("ab\\*cdef", 4, "…"))
	// An emoji that would straddle the limit is dropped whole.
	assert.Equal(t, "a🍅…", truncateMessage("a🍅🍅🍅", 5, "…"))
	assert.Equal(t, 4, messageLen("🍅🌿"))
}

func TestRegisterCommands(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Request", mock.MatchedBy(func(c tgbotapi.SetMyCommandsConfig) bool {
		return len(c.Commands) == len(menuCommands) && c.Commands[2].Command == "favorites"
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	RegisterCommands(tg)
	tg.AssertExpectations(t)
}
