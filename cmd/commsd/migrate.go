package main

import (
	"fmt"

	"github.com/coder/serpent"

	"github.com/commsd/commsd/database/migrations"
)

func migrateCommand(cfg *rootConfig) *serpent.Command {
	return &serpent.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations.",
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			db, err := cfg.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Up(db.DB.DB); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(inv.Stdout, "migrations applied")
			return nil
		},
	}
}
