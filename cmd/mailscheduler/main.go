package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phleudt/mailscheduler/config"
	"github.com/phleudt/mailscheduler/internal/app"
	"github.com/phleudt/mailscheduler/internal/service"
	"github.com/phleudt/mailscheduler/pkg/googleauth"
)

const configFile = ".env"

func main() {
	root := &cobra.Command{
		Use:           "mailscheduler",
		Short:         "Outbound email sequencing engine driven by a spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newInitCmd(),
		newSyncRecipientsCmd(),
		newSyncHistoryCmd(),
		newScheduleCmd(),
		newDispatchCmd(),
		newConfigureCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, wires the engine and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create the configuration and authorize Google access",
		RunE: func(cmd *cobra.Command, args []string) error {
			wizard := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout())

			defaults, _ := config.Load()
			cfg, err := wizard.Run(defaults)
			if err != nil {
				return err
			}
			if err := cfg.Save(configFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", configFile)

			oauthConfig, err := googleauth.LoadConfig(cfg.Google.CredentialsFile)
			if err != nil {
				return err
			}
			if _, err := googleauth.TokenFromFile(cfg.Google.TokenFile); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "existing Google token found, skipping authorization")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Visit the following URL and paste the authorization code:\n%s\n> ", googleauth.AuthURL(oauthConfig))
			reader := bufio.NewReader(cmd.InOrStdin())
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			if _, err := googleauth.Exchange(cmd.Context(), oauthConfig, strings.TrimSpace(code), cfg.Google.TokenFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token stored in %s\n", cfg.Google.TokenFile)
			return nil
		},
	}
}

func newSyncRecipientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-recipients",
		Short: "Ingest recipient rows from the spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				synced, err := a.RecipientSync.Sync(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %d recipients\n", synced)
				return nil
			})
		},
	}
}

func newSyncHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-history",
		Short: "Ingest externally recorded sends and link them into the schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.HistorySync == nil {
					return fmt.Errorf("HISTORY_RANGE is not configured")
				}
				created, err := a.HistorySync.Sync(ctx)
				if err != nil {
					return err
				}
				if err := a.HistorySync.LinkOrphans(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %d external emails\n", created)
				return nil
			})
		},
	}
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Materialize email sequences for every recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.EnsureDefaultPlan(ctx); err != nil {
					return err
				}
				results, err := a.Scheduler.ScheduleAll(ctx)
				if err != nil {
					return err
				}
				for recipientID, emails := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: scheduled %d\n", recipientID, len(emails))
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to schedule")
				}
				return nil
			})
		},
	}
}

func newDispatchCmd() *cobra.Command {
	var draft bool
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Send (or draft) the next due email of each recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				saveAsDraft := draft || a.Config.SaveAsDraft
				results, err := a.Dispatcher.DispatchAll(ctx, saveAsDraft)
				if err != nil {
					return err
				}
				for _, r := range results {
					switch {
					case r.Outcome == service.DispatchOutcomeSkipped:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped: replied\n", r.RecipientID)
					case r.Outcome == service.DispatchOutcomeSent && r.Err != nil:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: sent, but thread binding failed: %v\n", r.RecipientID, r.Err)
					case r.Outcome == service.DispatchOutcomeSent && saveAsDraft:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: drafted\n", r.RecipientID)
					case r.Outcome == service.DispatchOutcomeSent:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: sent\n", r.RecipientID)
					case r.Err != nil:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: failed: %v\n", r.RecipientID, r.Err)
					default:
						reason := "send failed"
						if r.SendResult != nil && r.SendResult.ErrorMessage != nil {
							reason = *r.SendResult.ErrorMessage
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s: failed: %s\n", r.RecipientID, reason)
					}
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing due")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&draft, "draft", false, "save as Gmail drafts instead of sending")
	return cmd
}

func newConfigureCmd() *cobra.Command {
	configure := &cobra.Command{
		Use:   "configure",
		Short: "Inspect or modify the configuration",
	}
	configure.AddCommand(&cobra.Command{
		Use:   "modify [field]",
		Short: "Interactively change one configuration field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			wizard := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout())
			field := ""
			if len(args) == 1 {
				field = args[0]
			} else {
				reader := bufio.NewReader(cmd.InOrStdin())
				fmt.Fprint(cmd.OutOrStdout(), "Field to modify (e.g. SENDER_EMAIL): ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read field name: %w", err)
				}
				field = strings.TrimSpace(line)
			}

			next, err := wizard.ModifyField(cfg, field)
			if err != nil {
				return err
			}
			if err := next.Save(configFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", strings.ToUpper(field))
			return nil
		},
	})
	return configure
}
