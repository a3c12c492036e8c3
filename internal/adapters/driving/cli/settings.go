package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

var settingsCmd = withAccess(&cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings. Values are resolved from defaults, the
config file and RAGMEM_* environment variables, in increasing precedence.

Use 'settings set' to change one key or the wizard to pick AI providers.`,
	RunE: runSettingsShow,
}, AccessSettings)

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting in the config file",
	Long: `Stores a single dot-notation key in the config file. The value is parsed
according to the key's type and the resulting settings are validated before
anything is written. List values such as ingest.steps are comma separated.

Examples:
  ragmem settings set search.max_matches 4
  ragmem settings set generation.provider ollama
  ragmem settings set ingest.initial_backoff 250ms`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive provider setup",
	Long:  `Run an interactive wizard to choose the embedding and generation providers.`,
	RunE:  runSettingsWizard,
}

var settingsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the configured AI providers respond",
	Long: `Sends a small request to the embedding and generation providers using the
current settings. Providers that are not configured are skipped.`,
	Args: cobra.NoArgs,
	RunE: runSettingsTest,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsTestCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func requireSettings() error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'ragmem settings set' to fix configuration issues.")
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("Config file: %s\n", settingsService.Path())
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Root: %s\n", settings.Storage.Root)
	cmd.Printf("  Lock timeout: %s\n", settings.Storage.LockTimeout)
	cmd.Println()

	cmd.Println("[Partition]")
	cmd.Printf("  Max tokens per chunk: %d\n", settings.Partition.MaxTokensPerChunk)
	cmd.Printf("  Max tokens per line: %d\n", settings.Partition.MaxTokensPerLine)
	cmd.Printf("  Overlap tokens: %d\n", settings.Partition.OverlapTokens)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Max matches: %d\n", settings.Search.MaxMatches)
	cmd.Printf("  Answer tokens: %d\n", settings.Search.AnswerTokens)
	cmd.Printf("  Context tokens: %d\n", settings.ContextBudget())
	cmd.Printf("  Min relevance: %g\n", settings.Search.MinRelevance)
	cmd.Println()

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		printAPIKey(cmd, settings.Embedding.APIKey)
	}
	printStatus(cmd, settings.Embedding.IsConfigured())
	cmd.Println()

	// Generation settings
	cmd.Println("[Generation]")
	cmd.Printf("  Provider: %s\n", settings.Generation.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Generation.Model)
	if settings.Generation.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Generation.BaseURL)
	}
	if settings.Generation.Provider.RequiresAPIKey() {
		printAPIKey(cmd, settings.Generation.APIKey)
	}
	cmd.Printf("  Stop: %q\n", settings.Generation.Stop)
	cmd.Printf("  Context size: %d\n", settings.Generation.ContextSize)
	printStatus(cmd, settings.Generation.IsConfigured())
	cmd.Println()

	cmd.Println("[Ingest]")
	cmd.Printf("  Workers: %d\n", settings.Ingest.Workers)
	cmd.Printf("  Batch size: %d\n", settings.Ingest.BatchSize)
	cmd.Printf("  Max attempts: %d\n", settings.Ingest.MaxAttempts)
	cmd.Printf("  Backoff: %s to %s\n", settings.Ingest.InitialBackoff, settings.Ingest.MaxBackoff)
	cmd.Printf("  Steps: %v\n", settings.Ingest.Steps)
	cmd.Println()

	cmd.Println("Configuration is valid.")
	return nil
}

func printAPIKey(cmd *cobra.Command, key string) {
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func printStatus(cmd *cobra.Command, configured bool) {
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if strings.HasSuffix(key, "api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsTest(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	checks, err := settingsService.TestProviders(cmd.Context())
	if err != nil {
		return err
	}

	failed := 0
	for _, c := range checks {
		switch {
		case c.Skipped:
			cmd.Printf("%-11s skipped (not configured)\n", c.Role)
		case c.OK():
			cmd.Printf("%-11s ok  %s %s\n", c.Role, c.Provider, c.Model)
		default:
			failed++
			cmd.Printf("%-11s FAIL %s %s: %v\n", c.Role, c.Provider, c.Model, c.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d provider check(s) failed", failed)
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	cmd.Println("ragmem Settings Wizard")
	cmd.Println("======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	if err := configureProvider(cmd, reader, "embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels()); err != nil {
		return err
	}

	cmd.Println("Step 2: Generation Provider")
	cmd.Println("---------------------------")
	if err := configureProvider(cmd, reader, "generation",
		domain.AllGenerationProviders(), domain.DefaultGenerationModels()); err != nil {
		return err
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if _, err := settingsService.Get(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}
	return nil
}

// configureProvider asks for the provider, model and API key of one section.
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, section string,
	providers []domain.AIProvider, defaults map[domain.AIProvider]string) error {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	values := [][2]string{
		{section + ".provider", string(selected)},
		{section + ".model", model},
	}
	if apiKey != "" {
		values = append(values, [2]string{section + ".api_key", apiKey})
	}
	for _, kv := range values {
		if err := settingsService.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to configure %s provider: %w", section, err)
		}
	}

	cmd.Printf("%s provider configured: %s (%s)\n\n", capitalise(section), selected.Description(), model)
	return nil
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
