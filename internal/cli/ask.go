package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketplace-assistant/internal/chatclient"
	"marketplace-assistant/internal/models"
)

type askOptions struct {
	server    string
	userID    string
	page      string
	cachePath string
	noCache   bool
	timeout   time.Duration
	json      bool
}

// NewAskCmd creates the 'ask' command, a terminal chat client.
func NewAskCmd() *cobra.Command {
	opts := askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the marketplace assistant a question",
		Long: `Send a message to the chat endpoint. Answers are cached locally in a SQLite
file so repeated questions are answered without a network call.`,
		Example: `  marketctl ask "how do I track my order"
  marketctl ask --user u-42 "what should I bring to a track day?"
  marketctl ask --no-cache --json "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.server, "server", "s", "http://localhost:3010", "Assistant server URL")
	cmd.Flags().StringVarP(&opts.userID, "user", "u", "", "User ID for personalised caching")
	cmd.Flags().StringVarP(&opts.page, "page", "p", "", "Page the question is asked from")
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", defaultCachePath(), "Local answer cache file")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Skip the local answer cache")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 30*time.Second, "Request timeout")
	cmd.Flags().BoolVarP(&opts.json, "json", "j", false, "Output as JSON")

	return cmd
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".marketplace-assistant", "cache.db")
	}
	return filepath.Join(home, ".marketplace-assistant", "cache.db")
}

// runAsk sends one message and prints the answer.
func runAsk(ctx context.Context, out io.Writer, message string, opts askOptions) error {
	var lc *chatclient.LocalCache
	if !opts.noCache {
		var err error
		lc, err = chatclient.OpenLocalCache(opts.cachePath, chatclient.DefaultTTL)
		if err != nil {
			return err
		}
		defer lc.Close()
	}

	client := chatclient.NewClient(opts.server, opts.timeout, lc, zap.NewNop())

	req := &models.ChatRequest{Message: message, UserID: opts.userID}
	if opts.page != "" {
		req.Context = &models.ChatContext{Page: opts.page}
	}

	resp, err := client.Ask(contextOrBackground(ctx), req)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(out, resp.Response)
	for _, a := range resp.Actions {
		fmt.Fprintf(out, "  -> %s (%s)\n", a.Label, a.URL)
	}
	source := string(resp.Source)
	if resp.Cached {
		source += ", cached"
	}
	fmt.Fprintf(out, "[%s]\n", source)

	return nil
}
