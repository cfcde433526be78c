package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/raine/telegram-recipe-bot/internal/export"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/spoonacular"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/raine/telegram-recipe-bot/internal/view"
	"github.com/rs/zerolog/log"
)

// multipartOverhead is allowed on top of the image size for form headers
// and boundaries.
const multipartOverhead = 64 << 10

type requestError struct {
	status  int
	code    string
	message string
}

// handleFindRecipes handles POST /v1/recipes
func (s *Server) handleFindRecipes(w http.ResponseWriter, r *http.Request) {
	img, reqErr := s.readImage(w, r)
	if reqErr != nil {
		writeError(w, r, reqErr.status, reqErr.code, reqErr.message, false, nil)
		return
	}

	res := s.recipes.Run(r.Context(), img)

	status := http.StatusOK
	if res.Outcome.Failed() {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, view.NewRecipesResponse(res))
}

// readImage takes the photo from the multipart field "image" or from a raw
// image/* body.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (recipe.Image, *requestError) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return recipe.Image{}, &requestError{http.StatusUnsupportedMediaType, ErrCodeUnsupportedMediaType,
			"Content-Type must be multipart/form-data or image/*"}
	}

	var (
		data     []byte
		mimeType string
	)
	switch {
	case mediaType == "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+multipartOverhead)
		file, header, err := r.FormFile("image")
		if err != nil {
			return recipe.Image{}, bodyError(err, "missing multipart field \"image\"")
		}
		defer file.Close()
		if header.Size > s.config.MaxUploadBytes {
			return recipe.Image{}, tooLarge(s.config.MaxUploadBytes)
		}
		if data, err = io.ReadAll(file); err != nil {
			return recipe.Image{}, bodyError(err, "failed to read upload")
		}
		mimeType = header.Header.Get("Content-Type")
	case strings.HasPrefix(mediaType, "image/"):
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
		if data, err = io.ReadAll(r.Body); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return recipe.Image{}, tooLarge(s.config.MaxUploadBytes)
			}
			return recipe.Image{}, bodyError(err, "failed to read upload")
		}
		mimeType = mediaType
	default:
		return recipe.Image{}, &requestError{http.StatusUnsupportedMediaType, ErrCodeUnsupportedMediaType,
			"Content-Type must be multipart/form-data or image/*"}
	}

	if len(data) == 0 {
		return recipe.Image{}, &requestError{http.StatusBadRequest, ErrCodeInvalidRequest, "image is empty"}
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = ""
	}
	img := recipe.NewImage(data, mimeType)
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return recipe.Image{}, &requestError{http.StatusUnsupportedMediaType, ErrCodeUnsupportedMediaType,
			"upload is not an image"}
	}
	return img, nil
}

func bodyError(err error, message string) *requestError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLarge(maxErr.Limit)
	}
	return &requestError{http.StatusBadRequest, ErrCodeInvalidRequest, message}
}

func tooLarge(limit int64) *requestError {
	return &requestError{http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
		"image exceeds " + strconv.FormatInt(limit>>20, 10) + " MiB"}
}

// handleRecipePDF handles GET /v1/recipes/{id}/pdf
func (s *Server) handleRecipePDF(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupRecipe(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	data, err := s.renderer.Render(r.Context(), *d)
	if err != nil {
		log.Error().Err(err).Int("recipeID", d.ID).Msg("pdf export failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to render PDF", true, nil)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(d.Title)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Debug().Err(err).Msg("failed to write pdf response")
	}
}

// handleListFavorites handles GET /v1/favorites
func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.favorites.List()
	if err != nil {
		log.Error().Err(err).Msg("failed to list favorites")
		writeError(w, r, http.StatusInternalServerError, ErrCodeStorageError, "failed to read favorites", false, nil)
		return
	}

	respondJSON(w, http.StatusOK, view.NewFavoritesResponse(favorites))
}

// handleAddFavorite handles POST /v1/favorites
func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req addFavoriteRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "body must be {\"id\": <recipe id>}", false, nil)
		return
	}

	d, ok := s.lookupRecipe(w, r, strconv.Itoa(req.ID))
	if !ok {
		return
	}

	result, err := s.favorites.Add(*d)
	if err != nil {
		log.Error().Err(err).Int("recipeID", d.ID).Msg("failed to save favorite")
		writeError(w, r, http.StatusInternalServerError, ErrCodeStorageError, "failed to save favorite", false, nil)
		return
	}

	status := http.StatusCreated
	if result == storage.AlreadyPresent {
		status = http.StatusOK
	}
	respondJSON(w, status, view.FavoriteResponse{Result: result.String(), Recipe: view.NewRecipeView(*d, "")})
}

// lookupRecipe parses a recipe ID and fetches its details, writing the
// error response itself when that fails.
func (s *Server) lookupRecipe(w http.ResponseWriter, r *http.Request, rawID string) (*recipe.Detail, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "recipe id must be a positive integer", false, nil)
		return nil, false
	}

	d, err := s.recipes.Detail(r.Context(), id)
	if err != nil {
		var apiErr *spoonacular.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "recipe not found", false,
				map[string]any{"id": id})
			return nil, false
		}
		log.Warn().Err(err).Int("recipeID", id).Msg("recipe lookup failed")
		if pipeline.IsUpstreamError(err) {
			writeError(w, r, http.StatusBadGateway, ErrCodeUpstreamError, "recipe lookup failed: "+err.Error(), true, nil)
		} else {
			writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "recipe lookup failed", true, nil)
		}
		return nil, false
	}
	return d, true
}
