package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-recipe-bot/internal/export"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	recipeCallbackPrefix = "recipe:"
	actionNav            = "nav"
	actionPDF            = "pdf"
	actionFavorite       = "fav"
)

// handlePhotoMessage runs the largest size of the photo through the
// pipeline. Called from session worker - no locking needed.
func (b *Bot) handlePhotoMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	// Telegram orders sizes from smallest to largest.
	photo := message.Photo[len(message.Photo)-1]
	b.findRecipes(ctx, session, photo.FileID, "image/jpeg")
}

// handleDocumentMessage accepts images sent uncompressed as files.
func (b *Bot) handleDocumentMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	doc := message.Document
	if !strings.HasPrefix(doc.MimeType, "image/") {
		session.reply(MsgNotAnImage)
		return
	}
	b.findRecipes(ctx, session, doc.FileID, doc.MimeType)
}

func (b *Bot) findRecipes(ctx context.Context, session *UserSession, fileID, mimeType string) {
	typingCtx, cancelTyping := context.WithCancel(ctx)
	go session.startTypingLoop(typingCtx)
	defer cancelTyping()

	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, fileID)
	if err != nil {
		log.Warn().Err(err).Int64("userId", session.userId).Msg("photo download failed")
		session.reply(MsgDownloadFailed, escapeMarkdown(err.Error()))
		return
	}

	res := b.recipes.Run(ctx, recipe.NewImage(data, mimeType))
	cancelTyping()

	var reasons []string
	if res.Outcome == pipeline.OutcomeSuccess {
		reasons = make([]string, len(res.Recipes))
		for i, d := range res.Recipes {
			reasons[i] = recipe.Reason(res.Concepts, d, nil)
		}
	}
	session.setResult(&res, reasons)

	b.replyWithOutcome(session, res)
}

// replyWithOutcome tells the user how the run ended and, on success, shows
// the first recipe.
func (b *Bot) replyWithOutcome(session *UserSession, res pipeline.Result) {
	switch res.Outcome {
	case pipeline.OutcomeNoConcepts:
		session.reply(MsgNoConcepts)
	case pipeline.OutcomeExtractionFailed:
		session.reply(MsgExtractionFailed, escapeMarkdown(res.Reason()))
	case pipeline.OutcomeFinderFailed:
		session.replyMarkdown(detectedConceptsText(res.Concepts) + "\n\n" + fmt.Sprintf(MsgFinderFailed, escapeMarkdown(res.Reason())))
	case pipeline.OutcomeNoRecipes:
		session.replyMarkdown(detectedConceptsText(res.Concepts) + "\n\n" + MsgNoRecipes)
	case pipeline.OutcomeSuccess:
		session.replyMarkdown(detectedConceptsText(res.Concepts) + "\n" +
			fmt.Sprintf(MsgRecipesFoundCount, pluralize("recipe", "recipes", len(res.Recipes))))
		b.sendRecipeCard(session)
	}
}

func detectedConceptsText(concepts recipe.ConceptSet) string {
	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = recipe.DisplayName(c)
	}
	return escapeMarkdown(fmt.Sprintf(MsgDetectedConcepts, strings.Join(names, ", ")))
}

func (b *Bot) sendRecipeCard(session *UserSession) {
	msg := tgbotapi.NewMessage(session.userId, renderRecipeCard(session.recipes))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = makeRecipeKeyboard(len(session.recipes.Result.Recipes), session.recipes.Selected)
	sent := session.replyWithMessage(msg)
	session.recipes.CardMsgID = sent.MessageID
}

// renderRecipeCard formats the selected recipe as a Markdown message that
// fits in a single Telegram message.
func renderRecipeCard(state RecipeBrowserState) string {
	d := state.Result.Recipes[state.Selected]

	var head strings.Builder
	fmt.Fprintf(&head, "*%s*\n", escapeMarkdown(d.Title))
	fmt.Fprintf(&head, MsgCardReadyServes+"\n", readyText(d.ReadyInMinutes), servesText(d.Servings))
	if state.Selected < len(state.Reasons) && state.Reasons[state.Selected] != "" {
		fmt.Fprintf(&head, "\n%s\n%s\n", MsgCardWhyHeader, escapeMarkdown(state.Reasons[state.Selected]))
	}

	head.WriteString("\n" + MsgCardIngredients + "\n")
	for _, line := range d.IngredientLines(recipe.DisplayFallback) {
		head.WriteString("• " + escapeMarkdown(line) + "\n")
	}
	head.WriteString("\n" + MsgCardInstructions + "\n")

	var tail string
	if d.SourceURL != "" && !strings.ContainsAny(d.SourceURL, "()") {
		tail = "\n\n" + fmt.Sprintf(MsgCardSource, d.SourceURL)
	}

	instructions := MsgCardNoInstructions
	if text := recipe.PlainText(d.Instructions); text != "" {
		instructions = escapeMarkdown(text)
	}

	room := maxMessageLength - messageLen(head.String()) - messageLen(tail)
	return head.String() + truncateMessage(instructions, max(room, 0), MsgCardTruncatedSuffix) + tail
}

func readyText(minutes int) string {
	if minutes <= 0 {
		return MsgCardUnknown
	}
	return fmt.Sprintf(MsgCardMinutesFmt, minutes)
}

func servesText(servings int) string {
	if servings <= 0 {
		return MsgCardUnknown
	}
	return strconv.Itoa(servings)
}

// makeRecipeKeyboard builds the numbered navigation row and the action row
// for the card. The selected number is marked.
func makeRecipeKeyboard(count, selected int) tgbotapi.InlineKeyboardMarkup {
	var nav []tgbotapi.InlineKeyboardButton
	if count > 1 {
		for i := range count {
			label := strconv.Itoa(i + 1)
			if i == selected {
				label = "· " + label + " ·"
			}
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(label, recipeCallbackData(actionNav, i)))
		}
	}
	actions := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(BtnPDF, recipeCallbackData(actionPDF, selected)),
		tgbotapi.NewInlineKeyboardButtonData(BtnSave, recipeCallbackData(actionFavorite, selected)),
	)
	if len(nav) == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(actions)
	}
	return tgbotapi.NewInlineKeyboardMarkup(nav, actions)
}

func recipeCallbackData(action string, index int) string {
	return fmt.Sprintf("%s%s:%d", recipeCallbackPrefix, action, index)
}

func parseRecipeCallback(data string) (action string, index int, err error) {
	parts := strings.Split(strings.TrimPrefix(data, recipeCallbackPrefix), ":")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid recipe callback: %q", data)
	}
	index, err = strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("invalid recipe index in callback: %q", data)
	}
	switch parts[0] {
	case actionNav, actionPDF, actionFavorite:
		return parts[0], index, nil
	default:
		return "", 0, fmt.Errorf("unknown recipe action in callback: %q", data)
	}
}

// handleRecipeCallback handles the card buttons. Buttons of an older card,
// or pressed after the session lost its results, are stale.
func (b *Bot) handleRecipeCallback(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	action, index, err := parseRecipeCallback(query.Data)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring callback")
		b.answerCallback(query, "")
		return
	}

	state := session.recipes
	stale := !state.hasRecipes() ||
		index >= len(state.Result.Recipes) ||
		(query.Message != nil && state.CardMsgID != 0 && query.Message.MessageID != state.CardMsgID)
	if stale {
		b.answerCallback(query, "")
		session.reply(MsgSendNewPhoto)
		return
	}

	switch action {
	case actionNav:
		b.answerCallback(query, "")
		b.selectRecipe(session, index)
	case actionPDF:
		b.answerCallback(query, MsgPreparingPDF)
		b.sendRecipePDF(ctx, session, state.Result.Recipes[index])
	case actionFavorite:
		b.answerCallback(query, b.saveFavorite(state.Result.Recipes[index]))
	}
}

// selectRecipe edits the card in place to show the recipe at index.
func (b *Bot) selectRecipe(session *UserSession, index int) {
	if index == session.recipes.Selected {
		return
	}
	session.mu.Lock()
	session.recipes.Selected = index
	session.mu.Unlock()

	edit := tgbotapi.NewEditMessageTextAndMarkup(
		session.userId,
		session.recipes.CardMsgID,
		renderRecipeCard(session.recipes),
		makeRecipeKeyboard(len(session.recipes.Result.Recipes), index),
	)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.DisableWebPagePreview = true
	if _, err := b.tg.Request(edit); err != nil {
		log.Warn().Err(err).Int64("userId", session.userId).Msg("failed to edit recipe card")
		// The old card can't be updated; send a fresh one instead.
		b.sendRecipeCard(session)
	}
}

func (b *Bot) sendRecipePDF(ctx context.Context, session *UserSession, d recipe.Detail) {
	session.sendChatAction(tgbotapi.ChatUploadDocument)

	data, err := b.renderer.Render(ctx, d)
	if err != nil {
		log.Error().Err(err).Int("recipeID", d.ID).Msg("pdf export failed")
		session.reply(MsgPDFFailed, escapeMarkdown(err.Error()))
		return
	}

	doc := tgbotapi.NewDocument(session.userId, tgbotapi.FileBytes{
		Name:  export.Filename(d.Title),
		Bytes: data,
	})
	if _, err := b.tg.Send(doc); err != nil {
		log.Error().Err(err).Int("recipeID", d.ID).Msg("failed to send pdf")
		session.replyWithError(err)
		return
	}
	log.Info().Int64("userId", session.userId).Int("recipeID", d.ID).Int("bytes", len(data)).Msg("sent recipe pdf")
}

// saveFavorite stores d and returns the text for the callback answer.
func (b *Bot) saveFavorite(d recipe.Detail) string {
	if b.favorites == nil {
		return MsgFavoritesUnavailable
	}
	res, err := b.favorites.Add(d)
	if err != nil {
		log.Error().Err(err).Int("recipeID", d.ID).Msg("failed to save favorite")
		return MsgSaveFavoriteFailed
	}
	if res == storage.AlreadyPresent {
		return MsgAlreadyInFavorites
	}
	return MsgSavedToFavorites
}

func (b *Bot) handleFavoritesCommand(session *UserSession) {
	if b.favorites == nil {
		session.reply(MsgFavoritesUnavailable)
		return
	}
	favorites, err := b.favorites.List()
	if err != nil {
		session.replyWithError(err)
		return
	}
	if len(favorites) == 0 {
		session.reply(MsgFavoritesEmpty)
		return
	}

	var sb strings.Builder
	sb.WriteString(MsgFavoritesHeader + "\n")
	for i, d := range favorites {
		fmt.Fprintf(&sb, "%d. %s", i+1, escapeMarkdown(d.Title))
		if d.ReadyInMinutes > 0 {
			fmt.Fprintf(&sb, " (%s)", readyText(d.ReadyInMinutes))
		}
		sb.WriteString("\n")
	}
	text := truncateMessage(strings.TrimSpace(sb.String()), maxMessageLength, MsgCardTruncatedSuffix)

	msg := tgbotapi.NewMessage(session.userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	session.replyWithMessage(msg)
}
