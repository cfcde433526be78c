package api

// addFavoriteRequest is the body of POST /v1/favorites.
type addFavoriteRequest struct {
	ID int `json:"id"`
}
