package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iurnickita/abetos/internal/logger"
	loggerConfig "github.com/iurnickita/abetos/internal/logger/config"
	"github.com/iurnickita/abetos/internal/service"
	serviceConfig "github.com/iurnickita/abetos/internal/service/config"
	"github.com/iurnickita/abetos/internal/store"
	storeConfig "github.com/iurnickita/abetos/internal/store/config"
)

// RootOptions - общие флаги команд.
type RootOptions struct {
	Driver  string
	DSN     string
	Format  string
	Lang    string
	Verbose bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "abetosctl",
		Short: "Abetos loyalty program administration",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := language.Parse(opts.Lang); err != nil {
				return fmt.Errorf("invalid language %q: %w", opts.Lang, err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", envOr("DATABASE_DRIVER", storeConfig.DriverPostgres), "database driver: pgx or sqlite3")
	cmd.PersistentFlags().StringVar(&opts.DSN, "db", os.Getenv("DATABASE_URI"), "database connection string")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Lang, "lang", "es-AR", "language for number formatting")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewMembersCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewRemoteCommand(opts))

	return cmd
}

// openService открывает хранилище и сервис для локальных команд.
func openService(opts *RootOptions) (service.Service, store.Store, error) {
	zaplog := zap.NewNop()
	if opts.Verbose {
		var err error
		zaplog, err = logger.NewZapLog(loggerConfig.Config{LogLevel: "debug"})
		if err != nil {
			return nil, nil, err
		}
	}

	s, err := store.NewStore(storeConfig.Config{Driver: opts.Driver, DBDsn: opts.DSN})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return service.NewService(serviceConfig.Default(), s, zaplog), s, nil
}

func (opts *RootOptions) printer() *message.Printer {
	return message.NewPrinter(language.Make(opts.Lang))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
