package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"benome-realtime/config"
	"benome-realtime/internal/repository"
	"benome-realtime/internal/services"
	"benome-realtime/pkg/database"
	"benome-realtime/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	seedUsers     int
	seedMessages  bool
	retentionDays int
	confirmDown   bool
)

func main() {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Benome realtime database tool",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg = loaded
			logger.SetGlobalLogger(logger.New(cfg.App.LogMode))
			return nil
		},
		SilenceUsage: true,
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cfg, func(m *database.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				log.Println("Migrations completed successfully")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all realtime tables)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmDown {
				return fmt.Errorf("refusing to roll back without --yes")
			}
			return withMigrator(cfg, func(m *database.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				log.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	downCmd.Flags().BoolVar(&confirmDown, "yes", false, "confirm the rollback")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version and row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withMigrator(cfg, func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				log.Printf("Schema version: %d (dirty: %t)", version, dirty)
				return nil
			}); err != nil {
				return err
			}
			return withDB(cmd.Context(), cfg, func(ctx context.Context, db *gorm.DB) error {
				for _, table := range []string{"users", "conversations", "messages", "notifications"} {
					var count int64
					if err := db.WithContext(ctx).Table(table).Count(&count).Error; err != nil {
						log.Printf("Table %-15s unavailable: %v", table, err)
						continue
					}
					log.Printf("Table %-15s %d rows", table, count)
				}
				return nil
			})
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed development users, conversations and messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), cfg, func(ctx context.Context, db *gorm.DB) error {
				result, err := database.Seed(ctx, db, &database.SeedConfig{
					TestUserCount: seedUsers,
					WithMessages:  seedMessages,
				}, logger.GetGlobalLogger())
				if err != nil {
					return err
				}
				for _, u := range result.Users {
					log.Printf("User %s %s", u.ID, u.Email)
				}
				return nil
			})
		},
	}
	seedCmd.Flags().IntVar(&seedUsers, "users", 4, "number of test users")
	seedCmd.Flags().BoolVar(&seedMessages, "messages", true, "seed a short message history")

	purgeCmd := &cobra.Command{
		Use:   "purge-notifications",
		Short: "Delete notifications older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			days := retentionDays
			if days == 0 {
				days = cfg.Jobs.RetentionDays
			}
			return withDB(cmd.Context(), cfg, func(ctx context.Context, db *gorm.DB) error {
				svc := services.NewNotificationService(repository.NewTransactor(db), repository.NewNotificationRepository(db), nil, logger.GetGlobalLogger().Logger)
				deleted, err := svc.PurgeOlderThan(ctx, days)
				if err != nil {
					return err
				}
				log.Printf("Deleted %d notifications older than %d days", deleted, days)
				return nil
			})
		},
	}
	purgeCmd.Flags().IntVar(&retentionDays, "days", 0, "retention in days (defaults to NOTIFICATION_RETENTION_DAYS)")

	rootCmd.AddCommand(upCmd, downCmd, statusCmd, seedCmd, purgeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func withMigrator(cfg *config.Config, fn func(m *database.Migrator) error) error {
	m, err := database.NewMigrator(cfg.Database.URL())
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func withDB(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, db *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.Connect(cfg.Database, cfg.App.Mode)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	return fn(ctx, db)
}
