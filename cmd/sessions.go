package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Alroma79/data-flywheel-chatbot/internal/app"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			sessions, err := a.Sessions.List(ctx)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  created %s  updated %s\n",
					s.ID,
					s.CreatedAt.Format("2006-01-02 15:04"),
					s.UpdatedAt.Format("2006-01-02 15:04"),
				)
			}
			return nil
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the full transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			turns, err := a.Sessions.History(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
			boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
			for _, t := range turns {
				label := boldCyan("Assistant")
				if t.Role == session.RoleUser {
					label = boldGreen("You")
				}
				fmt.Printf("%s: %s\n\n", label, strings.TrimRight(t.Content, "\n"))
			}
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Sessions.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// withApp runs fn against a fully wired application and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.Setup(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	return fn(context.Background(), a)
}
