package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "telegram-recipe-bot"
	EnvFileName = "config.env"
)

const (
	EnvBotToken          = "BOT_TOKEN"
	EnvClarifaiAPIKey    = "CLARIFAI_API_KEY"
	EnvSpoonacularAPIKey = "SPOONACULAR_API_KEY"
	EnvGeminiAPIKey      = "GEMINI_API_KEY"
	EnvConceptProvider   = "CONCEPT_PROVIDER"
	EnvFavoritesPath     = "FAVORITES_PATH"
	EnvRecipeDBPath      = "RECIPE_DB_PATH"
	EnvConceptCache      = "CONCEPT_CACHE"
	EnvConceptCacheAge   = "CONCEPT_CACHE_MAX_AGE"
	EnvAPIAddr           = "API_ADDR"
	EnvAPIRateLimit      = "API_RATE_LIMIT"
	EnvAPIRateBurst      = "API_RATE_BURST"
	EnvHTTPTimeout       = "HTTP_TIMEOUT"
	EnvRecipeLimit       = "RECIPE_LIMIT"
)

const (
	ProviderClarifai = "clarifai"
	ProviderGemini   = "gemini"
)

const (
	DefaultFavoritesPath = "favorites.json"
	DefaultRecipeDBPath  = "recipes.db"
	DefaultRateLimit     = 5.0
	DefaultRateBurst     = 10
	DefaultHTTPTimeout   = 20 * time.Second
	DefaultRecipeLimit   = 3
	DefaultConceptMaxAge = 30 * 24 * time.Hour
)

// Config is the runtime configuration shared by every front end.
type Config struct {
	BotToken          string
	ClarifaiAPIKey    string
	SpoonacularAPIKey string
	GeminiAPIKey      string
	ConceptProvider   string
	FavoritesPath     string
	// RecipeDBPath is the concept cache database; empty disables the cache.
	RecipeDBPath string
	// ConceptMaxAge is how long cached concepts are kept; 0 keeps them forever.
	ConceptMaxAge time.Duration
	APIAddr       string
	RateLimit     float64
	RateBurst     int
	HTTPTimeout   time.Duration
	RecipeLimit   int
}

// FilePath returns the location of the config file in the user's config
// directory.
func FilePath() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configBase, AppName, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist. Variables
// already set in the environment win.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// WriteEnvFile merges values into the config file and writes it with 0600
// permissions. Returns the path written.
func WriteEnvFile(values map[string]string) (string, error) {
	configPath, err := FilePath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	// Keep whatever was already configured.
	existing, err := godotenv.Read(configPath)
	if err != nil {
		existing = map[string]string{}
	}
	for k, v := range values {
		existing[k] = v
	}

	content, err := godotenv.Marshal(existing)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configPath, nil
}

// FromEnv reads the configuration from the process environment. Invalid
// numeric values are errors; unset ones take their defaults.
func FromEnv() (*Config, error) {
	c := &Config{
		BotToken:          strings.TrimSpace(os.Getenv(EnvBotToken)),
		ClarifaiAPIKey:    strings.TrimSpace(os.Getenv(EnvClarifaiAPIKey)),
		SpoonacularAPIKey: strings.TrimSpace(os.Getenv(EnvSpoonacularAPIKey)),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)),
		ConceptProvider:   strings.ToLower(envOr(EnvConceptProvider, ProviderClarifai)),
		FavoritesPath:     envOr(EnvFavoritesPath, DefaultFavoritesPath),
		RecipeDBPath:      envOr(EnvRecipeDBPath, DefaultRecipeDBPath),
		APIAddr:           strings.TrimSpace(os.Getenv(EnvAPIAddr)),
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
		HTTPTimeout:       DefaultHTTPTimeout,
		RecipeLimit:       DefaultRecipeLimit,
		ConceptMaxAge:     DefaultConceptMaxAge,
	}

	if strings.EqualFold(os.Getenv(EnvConceptCache), "off") {
		c.RecipeDBPath = ""
	}
	switch c.ConceptProvider {
	case ProviderClarifai, ProviderGemini:
	default:
		return nil, fmt.Errorf("%s must be %q or %q, got %q", EnvConceptProvider, ProviderClarifai, ProviderGemini, c.ConceptProvider)
	}

	if v := os.Getenv(EnvAPIRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%s must be a positive number: %q", EnvAPIRateLimit, v)
		}
		c.RateLimit = f
	}
	if v := os.Getenv(EnvAPIRateBurst); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer: %q", EnvAPIRateBurst, v)
		}
		c.RateBurst = n
	}
	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration: %q", EnvHTTPTimeout, v)
		}
		c.HTTPTimeout = d
	}
	if v := os.Getenv(EnvConceptCacheAge); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%s must be a duration, 0 to keep entries forever: %q", EnvConceptCacheAge, v)
		}
		c.ConceptMaxAge = d
	}
	if v := os.Getenv(EnvRecipeLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer: %q", EnvRecipeLimit, v)
		}
		c.RecipeLimit = n
	}

	return c, nil
}

// RequiredForPipeline lists the variables a pipeline run needs with the
// configured concept provider.
func (c *Config) RequiredForPipeline() []string {
	required := []string{EnvSpoonacularAPIKey}
	if c.ConceptProvider == ProviderGemini {
		return append(required, EnvGeminiAPIKey)
	}
	return append(required, EnvClarifaiAPIKey)
}

// Missing returns the names of the required variables that are not set.
func (c *Config) Missing(required ...string) []string {
	values := map[string]string{
		EnvBotToken:          c.BotToken,
		EnvClarifaiAPIKey:    c.ClarifaiAPIKey,
		EnvSpoonacularAPIKey: c.SpoonacularAPIKey,
		EnvGeminiAPIKey:      c.GeminiAPIKey,
	}
	var missing []string
	for _, name := range required {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}
