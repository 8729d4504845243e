package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketplace-assistant/internal/cache"
	"marketplace-assistant/internal/chatclient"
	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/repository"
)

// NewCacheCmd creates the 'cache' command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached chat answers",
	}

	cmd.AddCommand(newCachePurgeCmd())

	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	var olderThan time.Duration
	var localPath string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached answers older than a duration",
		Long: `Delete answers from the server-side response cache that have not been
written within --older-than. With --local, purge a client cache file instead.`,
		Example: `  marketctl cache purge
  marketctl cache purge --older-than 72h
  marketctl cache purge --local ~/.marketplace-assistant/cache.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if localPath != "" {
				return runLocalPurge(cmd.Context(), cmd.OutOrStdout(), localPath, olderThan)
			}
			return runCachePurge(cmd.Context(), cmd.OutOrStdout(), olderThan)
		},
	}

	cmd.Flags().DurationVarP(&olderThan, "older-than", "o", 0, "Maximum age to keep (default: chat.response_ttl)")
	cmd.Flags().StringVarP(&localPath, "local", "l", "", "Purge a local client cache file instead of the database")

	return cmd
}

// runCachePurge removes stale rows from chat_response_cache.
func runCachePurge(ctx context.Context, out io.Writer, olderThan time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if olderThan <= 0 {
		olderThan = cfg.Chat.ResponseTTL
	}
	if olderThan <= 0 {
		return fmt.Errorf("response TTL is disabled; pass --older-than")
	}

	logger := zap.NewNop()
	pool, err := repository.Connect(contextOrBackground(ctx), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var hot *cache.RedisCache
	if cfg.Redis.Enabled {
		hot, err = cache.Connect(contextOrBackground(ctx), cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer hot.Close()
	}

	svc := cache.NewCacheService(hot, repository.NewResponseCacheRepository(pool, cfg, logger), cfg, nil, logger)
	deleted, err := svc.Purge(contextOrBackground(ctx), olderThan)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Purged %d cached answers older than %s\n", deleted, olderThan)
	return nil
}

// runLocalPurge removes stale rows from a client cache file.
func runLocalPurge(ctx context.Context, out io.Writer, path string, olderThan time.Duration) error {
	if olderThan <= 0 {
		olderThan = chatclient.DefaultTTL
	}

	lc, err := chatclient.OpenLocalCache(path, olderThan)
	if err != nil {
		return err
	}
	defer lc.Close()

	deleted, err := lc.Purge(contextOrBackground(ctx))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Purged %d local answers older than %s\n", deleted, olderThan)
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
