package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contextos/ctxos/api"
)

var historySearch string

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List published context schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		schemas, err := client.ListSchemas(cmd.Context())
		if err != nil {
			return err
		}

		theme := newTUITheme()
		if len(schemas) == 0 {
			fmt.Println(theme.muted.Render("No published schemas"))
			return nil
		}
		for _, schema := range schemas {
			fmt.Printf("%s  %s  %s\n",
				theme.text.Render(schema.Name),
				schemaTypeStyle(theme, schema.Type),
				theme.muted.Render(schema.CompanyName))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		prompts, err := client.ListHistory(cmd.Context(), historySearch)
		if err != nil {
			return err
		}

		theme := newTUITheme()
		if len(prompts) == 0 {
			fmt.Println(theme.muted.Render("No completed prompts"))
			return nil
		}
		for _, entry := range prompts {
			fmt.Printf("%s  %s  %s\n",
				theme.muted.Render(formatHistoryDate(entry.CreatedAt)),
				statusStyle(theme, entry.Status),
				theme.text.Render(truncateRunes(firstLine(entry.OriginalPrompt), 80)))
		}
		return nil
	},
}

// remoteClient builds an API client from the stored credential, failing
// fast when none is configured.
func remoteClient() (*api.Client, error) {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		if env := os.Getenv("CTXOS_API_KEY"); env != "" {
			cfg.APIKey = env
		}
	}
	if cfg.APIKey == "" {
		return nil, errors.New("no API key configured; run the panel to connect")
	}
	return api.New(cfg.APIBase, cfg.APIKey), nil
}

func init() {
	historyCmd.Flags().StringVar(&historySearch, "search", "", "filter prompts by a search term")
	rootCmd.AddCommand(schemasCmd, historyCmd)
}
