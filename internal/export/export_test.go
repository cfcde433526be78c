package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExporter() *Exporter {
	e := NewExporter(2 * time.Second)
	e.compress = false
	return e
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(recipe.Detail{
		ID:    1,
		Title: "  Caprese  ",
		Ingredients: []recipe.Ingredient{
			{OriginalString: "2 tomatoes", Original: "two tomatoes"},
			{Original: "1 ball mozzarella"},
			{Name: "basil"},
			{},
		},
		Instructions: "<p>Mix <b>well</b></p>",
	})

	assert.Equal(t, "Caprese", doc.Title)
	assert.Equal(t, []string{"2 tomatoes", "1 ball mozzarella", "basil", recipe.ExportFallback}, doc.Ingredients)
	assert.Equal(t, "Mix well", doc.Instructions)
}

func TestBuildDocument_MissingInstructions(t *testing.T) {
	doc := BuildDocument(recipe.Detail{ID: 1, Title: "Toast"})
	assert.Equal(t, NoInstructions, doc.Instructions)
	assert.Empty(t, doc.Ingredients)
}

func TestRender_StripsMarkup(t *testing.T) {
	out, err := newTestExporter().Render(context.Background(), recipe.Detail{
		ID:           1,
		Title:        "Caprese",
		Ingredients:  []recipe.Ingredient{{Original: "2 tomatoes"}},
		Instructions: "<p>Mix <b>well</b></p>",
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Contains(t, string(out), "Mix well")
	assert.Contains(t, string(out), "- 2 tomatoes")
	assert.NotContains(t, string(out), "<b>")
	assert.NotContains(t, string(out), "<p>")
}

func TestRender_NullInstructionsWithUnreachableImage(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL + "/image.jpg"
	ts.Close()

	out, err := newTestExporter().Render(context.Background(), recipe.Detail{
		ID:       2,
		Title:    "Toast",
		ImageURL: url,
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Contains(t, string(out), NoInstructions)
}

func TestRender_ImageErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	out, err := newTestExporter().Render(context.Background(), recipe.Detail{ID: 3, Title: "Soup", ImageURL: ts.URL})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "/Subtype /Image")
}

func TestRender_UndecodableImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("definitely not a jpeg"))
	}))
	defer ts.Close()

	out, err := newTestExporter().Render(context.Background(), recipe.Detail{
		ID:           4,
		Title:        "Soup",
		ImageURL:     ts.URL,
		Instructions: "Boil water",
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "Boil water")
	assert.NotContains(t, string(out), "/Subtype /Image")
}

func TestRender_EmbedsImage(t *testing.T) {
	data := testJPEG(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer ts.Close()

	out, err := newTestExporter().Render(context.Background(), recipe.Detail{ID: 5, Title: "Soup", ImageURL: ts.URL})
	require.NoError(t, err)
	assert.Contains(t, string(out), "/Subtype /Image")
}

func TestRender_NonLatinText(t *testing.T) {
	out, err := newTestExporter().Render(context.Background(), recipe.Detail{
		ID:           6,
		Title:        "Crème brûlée",
		Instructions: "Caramelize – carefully",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Tomato Soup", "Tomato Soup.pdf"},
		{"Mac/Cheese: Deluxe?", "Mac-Cheese- Deluxe.pdf"},
		{"  ", "recipe.pdf"},
		{"???", "recipe.pdf"},
		{"..", "recipe.pdf"},
		{"Line\nbreak", "Line break.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.title))
		})
	}
}
