package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/scimap/internal/config"
)

const banner = "═══════════════════════════════════════════════════════════"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage scimap configuration",
	Long: `Manage scimap configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (SCIMAP_*, e.g. SCIMAP_LLM_MODEL)
3. Config file (~/.scimap/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Source != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", cfg.Source)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		shown := *cfg
		if shown.LLM.APIKey != "" {
			shown.LLM.APIKey = "********"
		}

		yamlData, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}

		fmt.Println(banner)
		fmt.Println("  Current Configuration")
		fmt.Println(banner)
		fmt.Println()
		fmt.Println(string(yamlData))
		fmt.Println(banner)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Long:  `Create a default configuration file, ~/.scimap/config.yaml unless a path is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := defaultConfigPath()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			configPath = args[0]
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'scimap config show' to view it, or delete it first to recreate", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		yamlData, err := yaml.Marshal(config.DefaultConfig())
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}

		content := "# scimap configuration\n" +
			"#\n" +
			"# Every key can be overridden from the environment: llm.model -> SCIMAP_LLM_MODEL.\n" +
			"# API keys are better kept in OPENAI_API_KEY / ANTHROPIC_API_KEY.\n\n" +
			string(yamlData)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n\n", configPath)
		return nil
	},
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".scimap", "config.yaml"), nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
