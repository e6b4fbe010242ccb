package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Alroma79/data-flywheel-chatbot/internal/app"
	"github.com/Alroma79/data-flywheel-chatbot/internal/chat"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
)

var (
	askSessionID string
	askNoStream  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the command line",
	Long: `Ask sends one question through the full pipeline (retrieval, context
assembly, generation) and prints the reply. Pass --session to continue an
existing conversation; otherwise a fresh session is created and its ID printed
so you can follow up.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Chat opens an interactive prompt. Every turn runs the full pipeline and
the conversation history persists, so you can pick it up later with
"flywheel ask --session <id>". Type "exit" or press Ctrl+C to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	askCmd.Flags().StringVarP(&askSessionID, "session", "s", "", "session ID to continue")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "wait for the full reply instead of streaming")
	chatCmd.Flags().StringVarP(&askSessionID, "session", "s", "", "session ID to continue")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
}

func runAsk(question string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	result, err := answer(ctx, a, askSessionID, question)
	if err != nil {
		return err
	}

	printSources(result.Snippets)
	if askSessionID == "" {
		fmt.Fprintf(os.Stderr, "session: %s\n", result.SessionID)
	}
	return nil
}

func runChat() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Println(boldGreen("Data Flywheel Chat"))
	fmt.Printf("Model: %s\n", boldCyan(cfg.Model))
	fmt.Println(`Type your message and press Enter. Type "exit" or press Ctrl+C to quit.`)
	fmt.Println()

	sessionID := askSessionID
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			break
		}

		fmt.Print(boldCyan("Assistant: "))
		result, err := answer(ctx, a, sessionID, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		sessionID = result.SessionID

		printSources(result.Snippets)
		fmt.Println()
	}

	if sessionID != "" {
		fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
	}
	return nil
}

// answer runs one turn, streaming deltas to stdout unless --no-stream is set.
func answer(ctx context.Context, a *app.App, sessionID, question string) (chat.Result, error) {
	if askNoStream {
		result, err := a.Orchestrator.HandleTurn(ctx, sessionID, question)
		if err != nil {
			return chat.Result{}, err
		}
		fmt.Println(result.Reply)
		return result, nil
	}

	result, err := a.Orchestrator.HandleTurnStream(ctx, sessionID, question, func(delta string) error {
		_, writeErr := fmt.Print(delta)
		return writeErr
	})
	if err != nil {
		return chat.Result{}, err
	}
	fmt.Println()
	return result, nil
}

func printSources(snippets []knowledge.Snippet) {
	if len(snippets) == 0 {
		return
	}
	faint := color.New(color.Faint).SprintFunc()
	names := make([]string, 0, len(snippets))
	for _, s := range snippets {
		names = append(names, s.Filename)
	}
	fmt.Println(faint("sources: " + strings.Join(names, ", ")))
}
