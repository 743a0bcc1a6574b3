package commands

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jask/banksync/internal/bank"
	"github.com/jask/banksync/internal/config"
	"github.com/jask/banksync/internal/database"
	"github.com/jask/banksync/internal/database/repository"
	"github.com/jask/banksync/internal/logging"
	"github.com/jask/banksync/internal/ynab"
)

// env holds everything subcommands need, opened lazily by the root
// PersistentPreRunE so `banksync --help` touches neither config nor db.
type env struct {
	cfg      config.Config
	log      zerolog.Logger
	db       *sql.DB
	rules    *repository.RuleRepo
	sessions *repository.SessionRepo

	// newBankClient and newBudgetClient are swappable in tests.
	newBankClient   func(cfg config.Config) (bank.Client, error)
	newBudgetClient func(cfg config.Config) (ynab.Client, error)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{
		newBankClient:   defaultBankClient,
		newBudgetClient: defaultBudgetClient,
	})
}

func newRootCommand(e *env) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "banksync",
		Short: "Sync bank transactions into a YNAB budget",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logging.New(verbose)

			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
				return fmt.Errorf("mkdir db dir: %w", err)
			}
			db, err := database.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				db.Close()
				return fmt.Errorf("migrate: %w", err)
			}
			e.db = db
			e.rules = repository.NewRuleRepo(db)
			e.sessions = repository.NewSessionRepo(db)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.db != nil {
				_ = e.db.Close()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newSyncCommand(e))
	rootCmd.AddCommand(newRulesCommand(e))
	rootCmd.AddCommand(newSessionsCommand(e))
	rootCmd.AddCommand(newCategoriesCommand(e))

	return rootCmd
}

func defaultBankClient(cfg config.Config) (bank.Client, error) {
	switch cfg.Bank.Provider {
	case "file":
		if cfg.Bank.ExportPath == "" {
			return nil, fmt.Errorf("bank.export_path not configured")
		}
		loc, err := time.LoadLocation(cfg.Bank.Timezone)
		if err != nil {
			loc = time.Local
		}
		return bank.NewFileClient(cfg.Bank.ExportPath, loc), nil
	default:
		return nil, fmt.Errorf("unknown bank provider %q", cfg.Bank.Provider)
	}
}

func defaultBudgetClient(cfg config.Config) (ynab.Client, error) {
	if cfg.Ynab.Token == "" {
		return nil, fmt.Errorf("ynab.token not configured (set BANKSYNC_YNAB_TOKEN)")
	}
	return ynab.NewHTTPClient(cfg.Ynab.Token), nil
}
