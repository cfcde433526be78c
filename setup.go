package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/raine/telegram-recipe-bot/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Endpoints used to check keys entered in the setup wizard.
var (
	telegramAPIBase    = "https://api.telegram.org"
	clarifaiAPIBase    = "https://api.clarifai.com"
	spoonacularAPIBase = "https://api.spoonacular.com"
	geminiAPIBase      = "https://generativelanguage.googleapis.com"
)

const validateTimeout = 10 * time.Second

// isInteractiveTerminal reports whether the setup wizard can prompt the user.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runSetupWizard asks for the missing keys, checks each against its service
// and saves them to the config file. Returns true if the bot should start.
func runSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("🍳 Telegram Recipe Bot - First-time Setup"))
	fmt.Println()

	botToken := os.Getenv(config.EnvBotToken)
	spoonacularKey := os.Getenv(config.EnvSpoonacularAPIKey)
	provider := config.ProviderClarifai
	var recognitionKey string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Message @BotFather on Telegram → /newbot → copy token").
				Value(&botToken).
				Validate(required("token", validateTelegramToken)),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Ingredient recognition").
				Options(
					huh.NewOption("Clarifai food model", config.ProviderClarifai),
					huh.NewOption("Google Gemini", config.ProviderGemini),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				TitleFunc(func() string {
					if provider == config.ProviderGemini {
						return "Gemini API Key"
					}
					return "Clarifai API Key"
				}, &provider).
				DescriptionFunc(func() string {
					if provider == config.ProviderGemini {
						return "Get yours at https://aistudio.google.com/apikey"
					}
					return "Create a personal access token at https://clarifai.com/settings/security"
				}, &provider).
				Value(&recognitionKey).
				Validate(required("API key", func(key string) error {
					if provider == config.ProviderGemini {
						return validateGeminiKey(key)
					}
					return validateClarifaiKey(key)
				})),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Spoonacular API Key").
				Description("Get yours at https://spoonacular.com/food-api/console#Profile").
				Value(&spoonacularKey).
				Validate(required("API key", validateSpoonacularKey)),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled, nothing was saved.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		config.EnvBotToken:          botToken,
		config.EnvSpoonacularAPIKey: spoonacularKey,
		config.EnvConceptProvider:   provider,
	}
	if provider == config.ProviderGemini {
		values[config.EnvGeminiAPIKey] = recognitionKey
	} else {
		values[config.EnvClarifaiAPIKey] = recognitionKey
	}

	configPath, err := config.WriteEnvFile(values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		waitOnWindows()
		return false
	}

	// The bot starts in this process, so it needs the values too.
	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting the recipe bot...")
	fmt.Println()

	return true
}

func required(what string, validate func(string) error) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", what)
		}
		return validate(s)
	}
}

func validationClient() *resty.Client {
	return resty.New().SetTimeout(validateTimeout)
}

// validateTelegramToken asks getMe who the token belongs to.
func validateTelegramToken(token string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}
	res, err := validationClient().R().
		SetContext(context.Background()).
		SetResult(&result).
		SetError(&result).
		SetPathParam("token", token).
		Get(telegramAPIBase + "/bot{token}/getMe")
	if err != nil {
		return connectionError(err)
	}
	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return fmt.Errorf("token rejected by Telegram (HTTP %d)", res.StatusCode())
	}
	return nil
}

// validateClarifaiKey reads the food model's metadata, which needs a valid key
// but costs no operations.
func validateClarifaiKey(key string) error {
	var result struct {
		Status struct {
			Description string `json:"description"`
		} `json:"status"`
	}
	res, err := validationClient().R().
		SetHeader("Authorization", "Key "+key).
		SetError(&result).
		Get(clarifaiAPIBase + "/v2/users/clarifai/apps/main/models/food-item-recognition")
	if err != nil {
		return connectionError(err)
	}
	return keyStatus(res.StatusCode(), result.Status.Description)
}

// validateSpoonacularKey makes the cheapest authenticated call. A 402 means
// the daily quota is used up, which still proves the key.
func validateSpoonacularKey(key string) error {
	var result struct {
		Message string `json:"message"`
	}
	res, err := validationClient().R().
		SetQueryParams(map[string]string{"apiKey": key, "query": "tomato", "number": "1"}).
		SetError(&result).
		Get(spoonacularAPIBase + "/food/ingredients/autocomplete")
	if err != nil {
		return connectionError(err)
	}
	if res.StatusCode() == http.StatusPaymentRequired {
		return nil
	}
	return keyStatus(res.StatusCode(), result.Message)
}

// validateGeminiKey validates a Gemini API key by listing models.
func validateGeminiKey(key string) error {
	var result struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	res, err := validationClient().R().
		SetQueryParam("key", key).
		SetError(&result).
		Get(geminiAPIBase + "/v1beta/models")
	if err != nil {
		return connectionError(err)
	}
	return keyStatus(res.StatusCode(), result.Error.Message)
}

func keyStatus(status int, message string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message != "" {
			return errors.New(message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", status)
	default:
		return fmt.Errorf("unexpected response (HTTP %d)", status)
	}
}

func connectionError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("timed out reaching the service, check your connection")
	}
	return errors.New("could not reach the service, check your connection")
}

// waitOnWindows keeps a double-clicked console open long enough to read the
// error.
func waitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to close this window.")
		fmt.Scanln()
	}
}

// fatalWithWait logs the error and exits with status 1.
func fatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	waitOnWindows()
	os.Exit(1)
}
