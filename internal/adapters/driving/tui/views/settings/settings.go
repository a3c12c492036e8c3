// Package settings provides the settings configuration view for the TUI.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
)

// ErrNoSettingsService indicates that no settings service was provided.
var ErrNoSettingsService = errors.New("settings service not available")

// Section tracks which settings section is active.
type Section int

const (
	SectionOverview Section = iota
	SectionEmbedding
	SectionGeneration
)

// Key constants for key handling.
const (
	keyDown  = "down"
	keyEnter = "enter"
	keyTab   = "tab"
)

// providerSection describes one provider picker.
type providerSection struct {
	prefix    string // config key prefix, e.g. "embedding"
	title     string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
}

var sections = map[Section]providerSection{
	SectionEmbedding: {
		prefix:    "embedding",
		title:     "Select Embedding Provider",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
	},
	SectionGeneration: {
		prefix:    "generation",
		title:     "Select Generation Provider",
		providers: domain.AllGenerationProviders(),
		models:    domain.DefaultGenerationModels(),
	},
}

// View is the settings configuration view.
type View struct {
	styles          *styles.Styles
	settingsService driving.SettingsService

	settings *domain.AppSettings
	// invalid holds the validation failure of the stored settings.
	invalid error
	err     error
	notice  string

	section      Section
	selected     int
	focusedField int // 0 = provider list, 1 = API key input

	apiKeyInput textinput.Model

	width  int
	height int
	ready  bool
}

// NewView creates a new settings view.
func NewView(s *styles.Styles, settingsService driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	apiKeyInput := textinput.New()
	apiKeyInput.Placeholder = "Enter API key"
	apiKeyInput.EchoMode = textinput.EchoPassword
	apiKeyInput.CharLimit = 256

	return &View{
		styles:          s,
		settingsService: settingsService,
		section:         SectionOverview,
		apiKeyInput:     apiKeyInput,
	}
}

// Init initialises the view and loads settings.
func (v *View) Init() tea.Cmd {
	return v.loadSettings()
}

// loadSettings falls back to the defaults when the stored settings do not
// validate, so the view can still be used to repair them.
func (v *View) loadSettings() tea.Cmd {
	svc := v.settingsService
	return func() tea.Msg {
		if svc == nil {
			return messages.SettingsLoaded{Err: ErrNoSettingsService}
		}
		settings, err := svc.Get()
		if err != nil {
			defaults := svc.GetDefaults()
			return messages.SettingsLoaded{Settings: &defaults, Err: err}
		}
		return messages.SettingsLoaded{Settings: settings}
	}
}

// Update handles messages for the settings view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.SettingsLoaded:
		v.settings = msg.Settings
		v.invalid = nil
		v.err = nil
		if msg.Err != nil {
			if msg.Settings == nil {
				v.err = msg.Err
			} else {
				v.invalid = msg.Err
			}
		}
		return v, nil

	case messages.SettingsSaved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.notice = "Settings saved."
		v.backToOverview()
		return v, v.loadSettings()

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.String() == "esc" {
		if v.section == SectionOverview {
			return v, messages.Goto(messages.ViewMenu)
		}
		v.backToOverview()
		return v, nil
	}

	if v.section == SectionOverview {
		return v.handleOverviewKeys(msg)
	}
	return v.handleProviderKeys(msg, sections[v.section])
}

func (v *View) handleOverviewKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case keyDown, "j":
		if v.selected < 1 {
			v.selected++
		}
	case keyEnter:
		v.notice = ""
		v.err = nil
		if v.selected == 0 {
			v.section = SectionEmbedding
		} else {
			v.section = SectionGeneration
		}
		v.selected = v.currentProviderIndex(v.section)
	}
	return v, nil
}

func (v *View) handleProviderKeys(msg tea.KeyMsg, sec providerSection) (*View, tea.Cmd) {
	if v.focusedField == 1 {
		switch msg.String() {
		case keyTab, "shift+tab":
			v.focusedField = 0
			v.apiKeyInput.Blur()
			return v, nil
		case keyEnter:
			return v, v.saveProvider(sec, sec.providers[v.selected], v.apiKeyInput.Value())
		}
		var cmd tea.Cmd
		v.apiKeyInput, cmd = v.apiKeyInput.Update(msg)
		return v, cmd
	}

	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case keyDown, "j":
		if v.selected < len(sec.providers)-1 {
			v.selected++
		}
	case keyTab:
		if sec.providers[v.selected].RequiresAPIKey() {
			v.focusedField = 1
			return v, v.apiKeyInput.Focus()
		}
	case keyEnter:
		provider := sec.providers[v.selected]
		if provider.RequiresAPIKey() && !v.hasAPIKey(sec, provider) {
			v.focusedField = 1
			return v, v.apiKeyInput.Focus()
		}
		return v, v.saveProvider(sec, provider, "")
	}
	return v, nil
}

// hasAPIKey reports whether provider is already configured with a key.
func (v *View) hasAPIKey(sec providerSection, provider domain.AIProvider) bool {
	if v.settings == nil {
		return false
	}
	if sec.prefix == "embedding" {
		return v.settings.Embedding.Provider == provider && v.settings.Embedding.APIKey != ""
	}
	return v.settings.Generation.Provider == provider && v.settings.Generation.APIKey != ""
}

// saveProvider stores the provider with its default model. An empty apiKey
// leaves the stored key untouched.
func (v *View) saveProvider(sec providerSection, provider domain.AIProvider, apiKey string) tea.Cmd {
	svc := v.settingsService
	return func() tea.Msg {
		if svc == nil {
			return messages.SettingsSaved{Err: ErrNoSettingsService}
		}
		updates := [][2]string{
			{sec.prefix + ".provider", provider.String()},
			{sec.prefix + ".model", sec.models[provider]},
		}
		if apiKey != "" {
			updates = append(updates, [2]string{sec.prefix + ".api_key", apiKey})
		}
		for _, u := range updates {
			if err := svc.Set(u[0], u[1]); err != nil {
				return messages.SettingsSaved{Err: err}
			}
		}
		return messages.SettingsSaved{}
	}
}

func (v *View) currentProviderIndex(section Section) int {
	if v.settings == nil {
		return 0
	}
	current := v.settings.Embedding.Provider
	if section == SectionGeneration {
		current = v.settings.Generation.Provider
	}
	for i, p := range sections[section].providers {
		if p == current {
			return i
		}
	}
	return 0
}

func (v *View) backToOverview() {
	if v.section == SectionGeneration {
		v.selected = 1
	} else {
		v.selected = 0
	}
	v.section = SectionOverview
	v.focusedField = 0
	v.apiKeyInput.SetValue("")
	v.apiKeyInput.Blur()
}

// View renders the settings view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Settings"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}

	if v.settings == nil {
		if v.err == nil {
			b.WriteString(v.styles.Muted.Render("Loading settings..."))
		}
		return b.String()
	}

	if v.section == SectionOverview {
		b.WriteString(v.renderOverview())
	} else {
		b.WriteString(v.renderProviderSelect(sections[v.section]))
	}

	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *View) renderOverview() string {
	var b strings.Builder
	s := v.settings

	items := []struct {
		label    string
		provider domain.AIProvider
		model    string
		ok       bool
	}{
		{"Embedding Provider", s.Embedding.Provider, s.Embedding.Model, s.Embedding.IsConfigured()},
		{"Generation Provider", s.Generation.Provider, s.Generation.Model, s.Generation.IsConfigured()},
	}

	for i, item := range items {
		indicator := "  "
		if i == v.selected {
			indicator = "> "
		}

		value := "Not Set"
		if item.provider != "" {
			value = fmt.Sprintf("%s (%s)", item.provider.Description(), item.model)
		}
		line := fmt.Sprintf("%s%s: %s", indicator, item.label, value)

		if i == v.selected {
			b.WriteString(v.styles.Selected.Render(line))
		} else {
			b.WriteString(v.styles.Normal.Render(line))
		}
		switch {
		case item.ok:
			b.WriteString(" " + v.styles.Success.Render("[configured]"))
		case item.provider.RequiresAPIKey():
			b.WriteString(" " + v.styles.Warning.Render("[needs API key]"))
		default:
			b.WriteString(" " + v.styles.Warning.Render("[not configured]"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, line := range []string{
		fmt.Sprintf("Memory directory: %s", s.Storage.Root),
		fmt.Sprintf("Chunks: %d tokens, lines %d tokens, overlap %d",
			s.Partition.MaxTokensPerChunk, s.Partition.MaxTokensPerLine, s.Partition.OverlapTokens),
		fmt.Sprintf("Search: %d matches, %d context tokens, %d answer tokens",
			s.Search.MaxMatches, s.ContextBudget(), s.Search.AnswerTokens),
		fmt.Sprintf("Ingest: %d workers, batches of %d", s.Ingest.Workers, s.Ingest.BatchSize),
	} {
		b.WriteString(v.styles.Muted.Render("  " + line))
		b.WriteString("\n")
	}
	if v.settingsService != nil {
		b.WriteString(v.styles.Muted.Render("  Config file: " + v.settingsService.Path()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case v.invalid != nil:
		b.WriteString(v.styles.Warning.Render("Warning: " + v.invalid.Error()))
	case v.notice != "":
		b.WriteString(v.styles.Success.Render(v.notice))
	default:
		b.WriteString(v.styles.Success.Render("Configuration is valid"))
	}
	b.WriteString("\n")

	return b.String()
}

func (v *View) renderProviderSelect(sec providerSection) string {
	var b strings.Builder

	b.WriteString(v.styles.Subtitle.Render(sec.title))
	b.WriteString("\n\n")

	current := v.settings.Embedding.Provider
	if sec.prefix == "generation" {
		current = v.settings.Generation.Provider
	}

	for i, provider := range sec.providers {
		highlighted := i == v.selected && v.focusedField == 0
		indicator := "  "
		if highlighted {
			indicator = "> "
		}

		line := indicator + provider.Description()
		if highlighted {
			b.WriteString(v.styles.Selected.Render(line))
		} else {
			b.WriteString(v.styles.Normal.Render(line))
		}
		if provider == current {
			b.WriteString(v.styles.Success.Render(" (current)"))
		}
		b.WriteString("\n")

		if model, ok := sec.models[provider]; ok {
			b.WriteString(v.styles.Muted.Render("    Model: " + model))
			b.WriteString("\n")
		}
	}

	if sec.providers[v.selected].RequiresAPIKey() {
		b.WriteString("\n")
		b.WriteString(v.styles.Normal.Render("API Key:"))
		b.WriteString("\n")
		b.WriteString(v.apiKeyInput.View())
		b.WriteString("\n")
	}

	return b.String()
}

func (v *View) renderHelp() string {
	switch {
	case v.section == SectionOverview:
		return v.styles.Help.Render("[j/k] navigate  [enter] edit  [esc] back")
	case v.focusedField == 1:
		return v.styles.Help.Render("[tab] back to list  [enter] save  [esc] back")
	default:
		return v.styles.Help.Render("[j/k] navigate  [tab] API key  [enter] select  [esc] back")
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Settings returns the settings currently shown.
func (v *View) Settings() *domain.AppSettings {
	return v.settings
}

// Section returns the active section.
func (v *View) Section() Section {
	return v.section
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// Reset resets the view to its initial state.
func (v *View) Reset() {
	v.section = SectionOverview
	v.selected = 0
	v.focusedField = 0
	v.err = nil
	v.notice = ""
	v.apiKeyInput.SetValue("")
	v.apiKeyInput.Blur()
}
