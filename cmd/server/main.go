package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jimdaga/briefdesk/internal/config"
	"github.com/jimdaga/briefdesk/internal/database"
	"github.com/jimdaga/briefdesk/internal/generator"
	"github.com/jimdaga/briefdesk/internal/models"
	"github.com/jimdaga/briefdesk/internal/store"
	"github.com/jimdaga/briefdesk/internal/streams"
	"github.com/jimdaga/briefdesk/internal/worker"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "briefdesk",
		Short:         "Briefdesk - turn client conversations into structured briefings",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, installs the process logger and opens the
// database with the encryption key applied.
func setup() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	slog.SetDefault(worker.NewLogger(cfg.LogLevel, cfg.LogFormat))

	if cfg.EncryptionKey != "" {
		if err := models.InitEncryption(cfg.EncryptionKey); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
	} else {
		slog.Warn("ENCRYPTION_KEY not set, OAuth tokens are stored unencrypted")
	}

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newGenerator(cfg *config.Config) *generator.Client {
	if cfg.GeneratorStub {
		slog.Warn("Using stub generator")
	}
	return generator.NewClient(cfg.GeneratorURL, cfg.GeneratorSecret, cfg.GeneratorTimeout, cfg.GeneratorStub)
}

// newPublisher connects the events stream. Events are optional: a failure is
// logged and nil is returned.
func newPublisher(cfg *config.Config) *streams.Publisher {
	pub, err := streams.NewPublisher(cfg.RedisURL)
	if err != nil {
		slog.Warn("Briefing events disabled", "error", err)
		return nil
	}
	return pub
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background generation worker and the events consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := cfg.Validate(); err != nil {
				return err
			}

			deps := worker.Deps{Generator: newGenerator(cfg), Store: store.New(db)}
			if pub := newPublisher(cfg); pub != nil {
				defer pub.Close()
				deps.Events = pub
			}

			stopConsumer, err := streams.StartEventConsumer(cfg.RedisURL, db)
			if err != nil {
				slog.Warn("Event consumer not started", "error", err)
			} else {
				defer stopConsumer()
			}

			return worker.Run(cfg, deps)
		},
	}
}

func migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{database.Up, database.Down},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := strings.ToLower(args[0])
			if direction != database.Up && direction != database.Down {
				return fmt.Errorf("unknown direction %q, want up or down", args[0])
			}

			_, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db, direction, steps); err != nil {
				return err
			}
			fmt.Printf("Migrations %s complete\n", direction)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 means all)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the development user and sample briefings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.RunMigrations(db); err != nil {
				return err
			}
			if err := database.SeedDevData(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Printf("Seeded development data for %s\n", database.DevUserEmail)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var ownerEmail, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import briefings exported from the legacy table",
		Long: `Import a JSON array of rows exported from the legacy briefings table.

Both legacy row layouts are accepted. Every imported briefing is owned by the
user with the given email, who must have signed in at least once.

Examples:
  briefdesk import --owner-email ana@example.com --file briefings.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)

			var owner models.User
			if err := db.Where("email = ?", ownerEmail).First(&owner).Error; err != nil {
				return fmt.Errorf("failed to find owner %s: %w", ownerEmail, err)
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := database.ImportLegacy(cmd.Context(), store.New(db), owner.ID, f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d briefings for %s\n", n, ownerEmail)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerEmail, "owner-email", "", "email of the user who will own the imported briefings")
	cmd.Flags().StringVar(&file, "file", "", "path to the legacy JSON export")
	cmd.MarkFlagRequired("owner-email")
	cmd.MarkFlagRequired("file")
	return cmd
}
