package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbmigrate/dbmigrate/internal/rollback"
)

func rollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback <handle>",
		Short: "Restore a previously created rollback point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb := rollback.NewFileCollaborator(flagRollbackDir)
			res, err := rb.Restore(context.Background(), rollback.Handle(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Detail)
			if !res.Restored {
				return fmt.Errorf("rollback point found but not automatically restorable")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRollbackDir, "rollback-dir", ".dbmigrate/rollback", "directory holding rollback-point markers")
	return cmd
}
