package cli

import (
	"fmt"
	"sort"

	"lsp-pool/src/internal/common"
)

// ValidateServers checks that every configured language server command
// resolves on PATH and reports where each one lives.
func ValidateServers(configPath string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	languages := make([]string, 0, len(cfg.Servers))
	for language := range cfg.Servers {
		languages = append(languages, language)
	}
	sort.Strings(languages)

	fmt.Printf("Checking %d configured language server(s):\n", len(languages))
	missing := 0
	for _, language := range languages {
		serverConfig := cfg.Servers[language]
		path, found := common.ResolveCommand(serverConfig.Command)
		if !found {
			missing++
			fmt.Printf("  %-12s %-32s NOT FOUND\n", language, serverConfig.Command)
			continue
		}
		fmt.Printf("  %-12s %-32s %s\n", language, serverConfig.Command, path)
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d language servers are not installed", missing, len(languages))
	}
	common.CLILogger.Info("All configured language servers are available")
	return nil
}
