package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/email-housekeeper/internal/adapters/intake"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/mikey/email-housekeeper/internal/di"
	"github.com/mikey/email-housekeeper/internal/factory"
	"github.com/mikey/email-housekeeper/internal/ports"
	"github.com/mikey/email-housekeeper/internal/utils"
)

const snippetSize = 300

var (
	opts    = &di.CLIOptions{}
	ownerID string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "housekeeper-cli",
		Short:         "Run the email housekeeper pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			if strings.TrimSpace(ownerID) == "" {
				return errors.New("--owner is required")
			}
			return nil
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ownerID, "owner", os.Getenv("HOUSEKEEPER_OWNER"), "Owner id the command acts for")
	flags.StringVar(&opts.ConfigFile, "config", "", "Path to config file (overrides provider flags)")
	flags.StringVar(&opts.Provider, "provider", "openai", "Model provider (openai, gemini, bedrock)")
	flags.StringVar(&opts.OpenAIAPIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "API key for OpenAI")
	flags.StringVar(&opts.OpenAIModel, "openai-model", "", "OpenAI chat model name")
	flags.StringVar(&opts.GeminiAPIKey, "gemini-api-key", os.Getenv("GEMINI_API_KEY"), "API key for Google Gemini")
	flags.StringVar(&opts.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flags.StringVar(&opts.EmbeddingModel, "embedding-model", "", "Embedding model name")
	flags.StringVar(&opts.StorePath, "db", "", "SQLite database path")
	flags.StringVar(&opts.MemoryType, "memory", "", "Vector memory type (chromem, inmemory, qdrant)")
	flags.StringVar(&opts.MemoryPath, "memory-path", "", "Directory of the persistent vector memory")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&opts.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(
		newProcessCmd(),
		newRunCmd(),
		newFeedbackCmd(),
		newStatsCmd(),
		newReviewCmd(),
		newKeysCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// invoke builds the CLI container, runs fn with its dependencies and releases them
func invoke(fn func(app *app) error) error {
	container, err := di.BuildCLIContainer(opts)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(
		logger *zap.Logger,
		service *core.HousekeeperService,
		records ports.RecordStore,
		memory core.MemoryStore,
		llmFactory *factory.LLMFactory,
		tp *utils.TextProcessor,
	) error {
		defer logger.Sync()
		defer records.Stop()
		defer func() {
			if err := llmFactory.Close(); err != nil {
				logger.Warn("Failed to close LLM clients", zap.Error(err))
			}
			if closer, ok := memory.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}()

		return fn(&app{
			logger:  logger,
			service: service,
			keys:    records,
			tp:      tp,
		})
	})
}

type app struct {
	logger  *zap.Logger
	service *core.HousekeeperService
	keys    credentials.Store
	tp      *utils.TextProcessor
}

func newProcessCmd() *cobra.Command {
	var autoMode bool
	var maxEmails int

	cmd := &cobra.Command{
		Use:   "process [email files...]",
		Short: "Process raw RFC 5322 messages from files, or stdin when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(func(a *app) error {
				emails, err := a.readEmails(cmd.InOrStdin(), args)
				if err != nil {
					return err
				}

				stats, err := a.service.ProcessBatch(cmd.Context(), ownerID, emails, autoMode, maxEmails)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
					return err
				}

				if stats.NeedsReview == 0 {
					return nil
				}
				items, err := a.service.ListForReview(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().BoolVar(&autoMode, "auto", false, "Execute confident decisions automatically")
	cmd.Flags().IntVar(&maxEmails, "max", 20, "Maximum number of emails to process")
	return cmd
}

func newRunCmd() *cobra.Command {
	var autoMode bool
	var maxEmails int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch recent mail from the configured mailbox and process it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(func(a *app) error {
				stats, err := a.service.Run(cmd.Context(), ownerID, autoMode, maxEmails)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
	cmd.Flags().BoolVar(&autoMode, "auto", false, "Execute confident decisions automatically")
	cmd.Flags().IntVar(&maxEmails, "max", 20, "Maximum number of emails to process")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <email-record-id> <keep|delete>",
		Short: "Correct a decision and teach the memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid email record id %q: %w", args[0], err)
			}
			action := core.Action(strings.ToLower(args[1]))

			return invoke(func(a *app) error {
				result, err := a.service.SubmitFeedback(cmd.Context(), ownerID, recordID, action)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics for the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(func(a *app) error {
				stats, err := a.service.GetStats(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "List emails waiting for a human decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(func(a *app) error {
				items, err := a.service.ListForReview(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the owner's service credentials",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the services the owner has credentials for",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return invoke(func(a *app) error {
					services, err := a.keys.ListCredentialServices(cmd.Context(), ownerID)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), services)
				})
			},
		},
		&cobra.Command{
			Use:   "set <service> [secret]",
			Short: "Store a credential, reading the secret from stdin when omitted",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				service, err := credentials.ParseService(args[0])
				if err != nil {
					return err
				}

				secret := ""
				if len(args) == 2 {
					secret = args[1]
				} else {
					raw, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("failed to read secret: %w", err)
					}
					secret = strings.TrimSpace(string(raw))
				}
				if secret == "" {
					return errors.New("secret must not be empty")
				}

				return invoke(func(a *app) error {
					if err := a.keys.SetCredential(cmd.Context(), ownerID, service.String(), secret); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Stored %s credential for %s\n", service, ownerID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <service>",
			Short: "Remove a stored credential",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				service, err := credentials.ParseService(args[0])
				if err != nil {
					return err
				}
				return invoke(func(a *app) error {
					if err := a.keys.DeleteCredential(cmd.Context(), ownerID, service.String()); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s credential for %s\n", service, ownerID)
					return nil
				})
			},
		},
	)

	return cmd
}

// readEmails parses each file as one message, or stdin when no files are given
func (a *app) readEmails(stdin io.Reader, files []string) ([]core.Email, error) {
	if len(files) == 0 {
		email, err := a.parseEmail(bufio.NewReader(stdin))
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return []core.Email{*email}, nil
	}

	emails := make([]core.Email, 0, len(files))
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open email file: %w", err)
		}
		email, err := a.parseEmail(bufio.NewReader(f))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		emails = append(emails, *email)
	}
	return emails, nil
}

func (a *app) parseEmail(r io.Reader) (*core.Email, error) {
	parsed, err := intake.ParseMessage(r)
	if err != nil {
		return nil, err
	}

	email := &core.Email{
		EmailID: parsed.MessageID,
		Subject: parsed.Subject,
		Sender:  parsed.From,
		Snippet: a.tp.Snippet(parsed.Body, snippetSize),
	}
	if email.EmailID == "" {
		email.EmailID = uuid.NewString()
	}

	a.logger.Debug("Parsed email",
		zap.String("email_id", email.EmailID),
		zap.String("subject", email.Subject),
		zap.String("sender", email.Sender))

	return email, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
