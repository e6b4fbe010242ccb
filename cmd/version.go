package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	fmt.Printf("Flywheel %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.Model)
	fmt.Printf("  API base: %s\n", cfg.APIBase)
	fmt.Printf("  Temperature: %.2f\n", cfg.Temperature)
	fmt.Printf("  Database: %s\n", cfg.DatabasePath)
	fmt.Printf("  Uploads: %s\n", cfg.UploadsDir)

	key := os.Getenv("OPENAI_API_KEY")
	if key != "" && len(key) > 8 {
		fmt.Printf("  OPENAI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("  OPENAI_API_KEY: configured")
	} else {
		fmt.Println("  OPENAI_API_KEY: Not set")
		fmt.Println()
		fmt.Println("Hint: set the OPENAI_API_KEY environment variable")
		fmt.Println("  export OPENAI_API_KEY=your-api-key")
	}

	return nil
}
