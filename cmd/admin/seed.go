package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"csesa-backend/internal/app"
	"csesa-backend/internal/feature/taxonomy"
)

func newSeedCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default roles and domains",
		Long:  "Insert the default roles and domains. Existing rows are left untouched, so the command is safe to re-run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				res, err := taxonomy.Seed(ctx, a.Roles, a.Domains)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				// 角色能力可能变化，让缓存重新加载
				if err := a.Registry.Invalidate(ctx); err != nil {
					a.Log.Warn("taxonomy cache invalidate failed", zap.Error(err))
				}
				a.Log.Info("seed done", zap.Int("roles", len(res.Roles)), zap.Int("domains", len(res.Domains)))
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "inserted %d roles, %d domains\n", len(res.Roles), len(res.Domains))
				return nil
			})
		},
	}
}
