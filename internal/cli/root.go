package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	vaultPath  string
	storageDSN string
	exclude    string
	serverURL  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vaultactivity",
	Short: "Track which notes in a vault get read and which get neglected",
	Long: "vaultactivity counts document opens and changes in a notes vault, keeps the " +
		"totals next to the vault, and ranks, reports and exports them.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.vaultactivity/config.toml)")
	pf.StringVar(&vaultPath, "vault", "", "vault directory (overrides config)")
	pf.StringVar(&storageDSN, "storage", "", "storage DSN: file path, memory://, sqlite:///path or postgres://... (overrides config)")
	pf.StringVar(&exclude, "exclude", "", "comma separated folders to leave out (overrides config)")
	pf.StringVar(&serverURL, "server", "", "server URL; commands go through a running server (default from config or VAULTACTIVITY_URL)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mostCmd)
	rootCmd.AddCommand(leastCmd)
	rootCmd.AddCommand(neglectedCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(trackCmd)
}
