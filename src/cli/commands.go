package cli

import (
	"github.com/spf13/cobra"

	"lsp-pool/src/internal/common"
	"lsp-pool/src/internal/constants"
	versionpkg "lsp-pool/src/internal/version"
)

// CLI Constants
const (
	CmdConfig     = "config"
	CmdConfigShow = "show"
	CmdConfigInit = "init"
	CmdValidate   = "validate"
	CmdSimulate   = "simulate"
	CmdVersion    = "version"

	FlagConfig      = "config"
	FlagForce       = "force"
	FlagVerbose     = "verbose"
	FlagJSON        = "json"
	FlagConnections = "connections"
	FlagWorkers     = "workers"
	FlagWorkspaces  = "workspaces"
	FlagRequests    = "requests"
	FlagAnonymous   = "anonymous"
	FlagSeed        = "seed"

	DefaultSimWorkers    = 10
	DefaultSimWorkspaces = 3
	DefaultSimRequests   = 5
)

// CLI Variables
var (
	configPath     string
	force          bool
	verbose        bool
	formatJSON     bool
	maxConnections int
	workers        int
	workspaces     int
	requests       int
	anonymous      bool
	seed           int64
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "lsp-pool",
	Short: "LSP Pool - a language-server connection pool for code editor backends",
	Long: `LSP Pool manages a pool of Language Server Protocol connections for
AI-assisted code editor backends.

Connections are shared per workspace, recycled across anonymous requests
under a capacity bound, health-checked, and replaced transparently when a
server misbehaves.

QUICK START:
  lsp-pool config init                     # Write the default configuration
  lsp-pool validate                        # Check configured language servers
  lsp-pool simulate                        # Run a pooling drill with simulated servers

AVAILABLE COMMANDS:

  Configuration:
    lsp-pool config show                   # Print the effective configuration
    lsp-pool config init                   # Write the default configuration file

  Operations:
    lsp-pool validate                      # Verify language server commands resolve
    lsp-pool simulate                      # Exercise the pool under concurrent load
    lsp-pool version                       # Show version information

SUPPORTED LANGUAGES:
  - Go (gopls), Python (jedi-language-server), TypeScript/JavaScript
    (typescript-language-server), Java (jdtls), Rust (rust-analyzer),
    C# (OmniSharp)

Use 'lsp-pool <command> --help' for detailed command information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command definitions
var (
	configCmd = &cobra.Command{
		Use:   CmdConfig,
		Short: "Manage pool configuration",
		Long: `Manage the YAML configuration for the pool and its language servers.

Available commands:
  lsp-pool config show          # Print the effective configuration
  lsp-pool config init          # Write the default configuration file`,
		RunE: runConfigCmd,
	}

	validateCmd = &cobra.Command{
		Use:   CmdValidate,
		Short: "Validate configured language servers",
		Long: `Check that every configured language server command resolves on PATH.

Missing servers are reported but do not fail the pool at runtime: workspaces
using them simply cannot get a connection until the server is installed.

Examples:
  lsp-pool validate
  lsp-pool validate --config custom.yaml`,
		RunE: runValidateCmd,
	}

	simulateCmd = &cobra.Command{
		Use:   CmdSimulate,
		Short: "Run a pooling drill with simulated servers",
		Long: `Exercise the connection pool under concurrent load using simulated
language servers. No real server process is spawned.

Workers are spread across a configurable number of workspaces so connection
sharing, recycling, and capacity limits all come into play. The report shows
per-connection load metrics along with pool totals.

Examples:
  lsp-pool simulate                                  # 10 workers over 3 workspaces
  lsp-pool simulate --workers 20 --workspaces 5
  lsp-pool simulate --anonymous --connections 4      # Anonymous sub-pool drill
  lsp-pool simulate --json                           # Machine-readable report`,
		RunE: runSimulateCmd,
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		Long: `Display version information for LSP Pool.

By default, shows only the version number. Use --verbose for detailed build
information including commit hash, build date, and Go version.`,
		RunE: runVersionCmd,
	}
)

// Config subcommands
var (
	configShowCmd = &cobra.Command{
		Use:   CmdConfigShow,
		Short: "Print the effective configuration",
		Long: `Print the configuration the pool would run with, after defaults are
applied. Missing or broken config files fall back to the defaults.`,
		RunE: runConfigShowCmd,
	}

	configInitCmd = &cobra.Command{
		Use:   CmdConfigInit,
		Short: "Write the default configuration file",
		Long: `Write the default configuration to the given path, or to
~/.lsp-pool/config.yaml when no --config is provided.

Refuses to overwrite an existing file unless --force is specified.`,
		RunE: runConfigInitCmd,
	}
)

func init() {
	// Config command flags
	configShowCmd.Flags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file path (optional)")
	configInitCmd.Flags().StringVarP(&configPath, FlagConfig, "c", "", "Target path for the configuration file (optional)")
	configInitCmd.Flags().BoolVarP(&force, FlagForce, "f", false, "Overwrite an existing configuration file")

	// Validate command flags
	validateCmd.Flags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file path (optional)")

	// Simulate command flags
	simulateCmd.Flags().IntVarP(&maxConnections, FlagConnections, "n", constants.DefaultMaxConnections, "Anonymous connection capacity")
	simulateCmd.Flags().IntVarP(&workers, FlagWorkers, "w", DefaultSimWorkers, "Number of concurrent workers")
	simulateCmd.Flags().IntVar(&workspaces, FlagWorkspaces, DefaultSimWorkspaces, "Number of distinct workspaces")
	simulateCmd.Flags().IntVarP(&requests, FlagRequests, "r", DefaultSimRequests, "Requests per worker")
	simulateCmd.Flags().BoolVar(&anonymous, FlagAnonymous, false, "Use anonymous acquisition instead of workspace sharing")
	simulateCmd.Flags().BoolVar(&formatJSON, FlagJSON, false, "Output the report as JSON")
	simulateCmd.Flags().Int64Var(&seed, FlagSeed, 1, "Seed for the simulated failure injection")

	// Version command flags
	versionCmd.Flags().BoolVarP(&verbose, FlagVerbose, "v", false, "Show detailed version information")

	// Config subcommands
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	// Add commands to root
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

// Command runner functions - these delegate to the extracted modules

func runConfigCmd(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

func runConfigShowCmd(cmd *cobra.Command, args []string) error {
	return ShowConfig(configPath)
}

func runConfigInitCmd(cmd *cobra.Command, args []string) error {
	return InitConfig(configPath, force)
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	return ValidateServers(configPath)
}

func runSimulateCmd(cmd *cobra.Command, args []string) error {
	return RunSimulation(SimulationOptions{
		MaxConnections:    maxConnections,
		Workers:           workers,
		Workspaces:        workspaces,
		RequestsPerWorker: requests,
		Anonymous:         anonymous,
		JSONOutput:        formatJSON,
		Seed:              seed,
	})
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if verbose {
		common.CLILogger.Info("%s", versionpkg.GetFullVersionInfo())
		return nil
	}
	common.CLILogger.Info("lsp-pool %s", versionpkg.GetVersion())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
