package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgWelcome       = `
		👋 Send me a photo of your ingredients and I'll suggest recipes you can cook with them.

		1. Take a photo of what you have
		2. I detect the ingredients in it
		3. You get up to three matching recipes

		Use the buttons under a recipe to browse, download it as PDF or save it to your favorites.
		/favorites shows your saved recipes.`
	MsgSendPhotoPrompt = "Send a photo of your ingredients to get recipe ideas."
	MsgSendNewPhoto    = "Send a new photo to get recipes."
	MsgNotAnImage      = "That file is not an image. Send a photo of your ingredients."
	MsgDownloadFailed  = "Could not download the photo: %s"
)

// =============================================================================
// Pipeline outcome messages
// =============================================================================

const (
	MsgNoConcepts        = "No ingredients detected. Try a clearer image of your ingredients."
	MsgExtractionFailed  = "Image recognition failed: %s"
	MsgFinderFailed      = "Error fetching recipes: %s"
	MsgNoRecipes         = "No recipes found. Try different ingredients!"
	MsgDetectedConcepts  = "🔍 Detected ingredients: %s"
	MsgRecipesFoundCount = "Found %s for you:"
)

// =============================================================================
// Recipe card
// =============================================================================

const (
	MsgCardReadyServes      = "⏱ Ready in %s | 🍽 Serves %s"
	MsgCardWhyHeader        = "*Why you'll love this:*"
	MsgCardIngredients      = "*Ingredients:*"
	MsgCardInstructions     = "*Instructions:*"
	MsgCardNoInstructions   = "No instructions provided for this recipe."
	MsgCardSource           = "[Full recipe](%s)"
	MsgCardUnknown          = "N/A"
	MsgCardTruncatedSuffix  = "…"
	MsgCardMinutesFmt       = "%d minutes"
	BtnPDF                  = "📄 PDF"
	BtnSave                 = "⭐ Save"
	MsgPreparingPDF         = "Preparing PDF…"
	MsgPDFFailed            = "Could not create the PDF: %s"
	MsgSavedToFavorites     = "Saved to favorites!"
	MsgAlreadyInFavorites   = "Already in favorites"
	MsgSaveFavoriteFailed   = "Could not save favorite"
	MsgFavoritesHeader      = "⭐ *Your favorites:*"
	MsgFavoritesEmpty       = "No favorites yet. Tap ⭐ Save under a recipe to keep it."
	MsgFavoritesUnavailable = "Favorites are not available."
)
