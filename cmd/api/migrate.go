package main

import (
	"context"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/repository/postgres"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Applies the database schema and exits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		db, err := postgres.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.RunMigrations(ctx, db); err != nil {
			return errors.Wrap(err, "migration failed")
		}
		jww.INFO.Println("Database migration completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
