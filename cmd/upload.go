package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Alroma79/data-flywheel-chatbot/internal/app"
	"github.com/Alroma79/data-flywheel-chatbot/internal/extract"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Add documents to the knowledge store",
	Long: `Upload reads one or more local files and registers them as knowledge
documents. Supported formats: ` + extract.SupportedList() + `. Re-uploading a
file with identical content is a no-op.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(args)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(paths []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.Setup(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	ctx := context.Background()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	var failed int
	for _, path := range paths {
		name := filepath.Base(path)
		if !extract.SupportedFilename(name) {
			fmt.Fprintf(os.Stderr, "skipping %s: unsupported format\n", name)
			failed++
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", name, err)
			failed++
			continue
		}

		contentType := mime.TypeByExtension(filepath.Ext(name))
		file, duplicate, err := a.Knowledge.Put(ctx, raw, name, contentType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uploading %s: %v\n", name, err)
			failed++
			continue
		}

		if duplicate {
			fmt.Printf("%s %s (already present, id %s)\n", yellow("="), name, file.ID)
		} else {
			fmt.Printf("%s %s (id %s, %d bytes)\n", green("+"), name, file.ID, file.Size)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(paths))
	}
	return nil
}
