package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rusenback/dockerstats/internal/environ"
	"github.com/rusenback/dockerstats/internal/remote"
	"github.com/rusenback/dockerstats/internal/tui"
)

var (
	topURL      string
	topUser     string
	topPassword string
	topInterval time.Duration
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Terminal dashboard for a running sampler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := remote.NewClient(topURL, topUser, topPassword)
		p := tea.NewProgram(tui.NewModel(client, topInterval), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	topCmd.Flags().StringVar(&topURL, "url",
		environ.GetString("DOCKERSTATS_URL", "http://localhost:5000"),
		"Base URL of the sampler API",
	)
	topCmd.Flags().StringVar(&topUser, "user", environ.GetString("AUTH_USER", ""), "Basic auth user")
	topCmd.Flags().StringVar(&topPassword, "password", environ.GetString("AUTH_PASSWORD", ""), "Basic auth password")
	topCmd.Flags().DurationVar(&topInterval, "interval",
		environ.GetDuration("REFRESH_INTERVAL", 2*time.Second),
		"Dashboard refresh interval",
	)
}
