package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/contextos/ctxos/api"
	"github.com/contextos/ctxos/config"
	"github.com/contextos/ctxos/lifecycle"
	"github.com/contextos/ctxos/state"
)

var (
	apiBase  string
	noUI     bool
	flagBase string
)

var rootCmd = &cobra.Command{
	Use:   "ctxos",
	Short: "Prompt enhancement panel",
	Long: "ctxos submits a free-text prompt to the enhancement service together\n" +
		"with selected context schemas, polls until the enhanced version is ready,\n" +
		"answers any clarifying questions the service asks, and composes the final\n" +
		"prompt from the enhancement plus the selected context.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPanel(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBase, "api-base", "", "override the enhancement service base URL")
	rootCmd.Flags().BoolVar(&noUI, "no-ui", false, "disable the interactive panel")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadRuntimeConfig resolves the effective config, flag overriding file.
func loadRuntimeConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagBase != "" {
		cfg.APIBase = flagBase
	}
	return cfg, nil
}

func runPanel(ctx context.Context) error {
	if !shouldUsePanelUI(isInteractiveTerminal(), noUI) {
		return errors.New("interactive terminal required; use the schemas or history subcommands")
	}

	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}
	apiBase = cfg.APIBase

	client := api.New(cfg.APIBase, cfg.APIKey)
	store := state.New(cfg.APIKey)

	// The program pointer is captured before the first event can fire;
	// the controller only emits after an explicit Submit.
	var program *tea.Program
	ctrl := lifecycle.New(client, func(ev lifecycle.Event) {
		program.Send(lifecycleEventMsg{ev: ev})
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newPanelModel(ctx, store, client, ctrl)
	program = tea.NewProgram(model, tea.WithAltScreen())

	// Credential edits made outside the panel are picked up live.
	if path, pathErr := config.Path(); pathErr == nil {
		if manager, mgrErr := config.NewManager(path); mgrErr == nil {
			manager.OnChange(func(cfg *config.Config) {
				program.Send(configReloadedMsg{cfg: cfg})
			})
			_ = manager.Watch(ctx)
		}
	}

	_, err = program.Run()
	ctrl.Cancel()
	return err
}
