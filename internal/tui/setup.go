package tui

import (
	"fmt"

	"github.com/0xKoda/tracekit/internal/config"
	"github.com/0xKoda/tracekit/internal/model"
	"github.com/0xKoda/tracekit/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// setupValues carries the first-run form selections.
type setupValues struct {
	Agent   string
	Profile string
	Theme   string
}

// newSetupForm builds the first-run setup form shown when no config file
// exists yet. Selections land in vals for saveSetupConfig.
func newSetupForm(sessionCount int, vals *setupValues) *huh.Form {
	vals.Agent = "all"
	vals.Profile = "cost"
	vals.Theme = theme.Active.Name

	agentOpts := []huh.Option[string]{huh.NewOption("all agents", "all")}
	for _, agent := range model.AllAgents() {
		agentOpts = append(agentOpts, huh.NewOption(string(agent), string(agent)))
	}

	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, th := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(th.Name, th.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to tracekit!").
				Description(fmt.Sprintf("Found %d sessions. Pick a few defaults and you're in.", sessionCount)),
			huh.NewSelect[string]().
				Title("Default agent filter").
				Options(agentOpts...).
				Value(&vals.Agent),
			huh.NewSelect[string]().
				Title("Optimization profile").
				Description("Orders findings by what you care about most.").
				Options(
					huh.NewOption("cost", "cost"),
					huh.NewOption("latency", "latency"),
					huh.NewOption("reliability", "reliability"),
				).
				Value(&vals.Profile),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
		),
	)
}

// saveSetupConfig persists the first-run selections and applies the theme.
func (a *App) saveSetupConfig() error {
	cfg := loadConfigOrDefault()
	cfg.General.DefaultAgent = a.setupVals.Agent
	cfg.General.DefaultProfile = a.setupVals.Profile
	cfg.Appearance.Theme = a.setupVals.Theme
	theme.SetActive(cfg.Appearance.Theme)
	return config.Save(cfg)
}
