package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/database"
	"github.com/qs3c/fbads_go_server/internal/pkg/logging"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
)

var (
	configPath    string
	migrationsDir string
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Database migrations and seed data for fbads_go_server",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logging.Init(cfg.Log, "migrate")
		return nil
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrate(func(m *migrate.Migrate) error {
			err := m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info().Msg("no change: database is up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations, one step by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid steps %q", args[0])
			}
			steps = n
		}
		return withMigrate(func(m *migrate.Migrate) error {
			if err := m.Steps(-steps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			log.Info().Int("steps", steps).Msg("migrations rolled back")
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrate(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate version: %w", err)
			}
			if dirty {
				fmt.Printf("%d (dirty)\n", version)
				return nil
			}
			fmt.Println(version)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions, default users and plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.NewMySQL(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}

		rbacService := service.NewRBACService(
			db,
			repository.NewRBACRepository(db),
			repository.NewUserRepository(db),
			repository.NewSubscriptionRepository(db),
		)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		result, err := rbacService.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info().
			Int("roles", result.Roles).
			Int("permissions", result.Permissions).
			Int("users_created", result.Users).
			Int("plans", result.Plans).
			Msg("seed completed")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "directory holding *.up.sql / *.down.sql")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// databaseURL golang-migrate 的 mysql 驱动地址
func databaseURL(c config.DatabaseConfig) string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?multiStatements=true",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func withMigrate(fn func(m *migrate.Migrate) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Database).
		Str("dir", migrationsDir).
		Msg("connecting for migrations")

	m, err := migrate.New("file://"+migrationsDir, databaseURL(cfg.Database))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warn().AnErr("source_err", sourceErr).AnErr("db_err", dbErr).Msg("failed to close migrate")
		}
	}()

	return fn(m)
}
