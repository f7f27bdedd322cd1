package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kehao95/gh-notify/internal/chat"
	"github.com/kehao95/gh-notify/internal/client"
	"github.com/kehao95/gh-notify/internal/config"
	"github.com/kehao95/gh-notify/internal/filter"
	"github.com/kehao95/gh-notify/internal/format"
	"github.com/kehao95/gh-notify/internal/logging"
	"github.com/kehao95/gh-notify/internal/message"
	"github.com/kehao95/gh-notify/internal/relay"
	"github.com/kehao95/gh-notify/internal/sse"
	"github.com/kehao95/gh-notify/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit with code %d", e.code)
}

func (e exitError) ExitCode() int {
	return e.code
}

func runWithSignals(run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	select {
	case sig := <-sigCh:
		cancel()
		_ = <-errCh
		if sig == os.Interrupt {
			return exitError{code: 130}
		}
		return exitError{code: 143}
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "gh-notify",
		Short:         "Turn GitHub webhook events into chat messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newFormatCmd(), newStreamCmd())

	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newFormatCmd() *cobra.Command {
	var event string
	cmd := &cobra.Command{
		Use:   "format [file]",
		Short: "Format one webhook delivery and print the result",
		Long: "Reads a webhook request {\"headers\": {...}, \"content\": {...}} from file or stdin.\n" +
			"With --event the input is the bare event payload instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				input = f
			}
			return runFormat(input, cmd.OutOrStdout(), event)
		},
	}
	cmd.Flags().StringVar(&event, "event", "", "GitHub event kind of a bare payload (e.g. push)")
	return cmd
}

func runFormat(in io.Reader, out io.Writer, event string) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var req message.WebhookRequest
	if event != "" {
		req.Headers = map[string]string{message.EventHeader: event}
		req.Content = data
	} else if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode webhook request: %w", err)
	}

	res := format.Format(req)
	if err := json.NewEncoder(out).Encode(res); err != nil {
		return err
	}
	if res.Failed() {
		return exitError{code: 1}
	}
	return nil
}

func newStreamCmd() *cobra.Command {
	var (
		serverURL  string
		smeeURL    string
		events     []string
		when       []string
		webhookURL string
		channel    string
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Format relayed webhook events and post them to a chat channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (serverURL == "") == (smeeURL == "") {
				return errors.New("exactly one of --server or --smee is required")
			}
			predicates, err := filter.ParseAll(when)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if webhookURL != "" {
				cfg.WebhookURL = webhookURL
			}
			if channel != "" {
				cfg.Channel = channel
			}

			logger, err := logging.New(cfg.LogLevel, cfg.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)
			log := logger.Sugar()

			tp, err := telemetry.InitTracer(context.Background(), cfg.OTLPEndpoint, cfg.TraceStderr)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() { _ = tp.Shutdown(context.Background()) }()

			var sink relay.Sink
			if cfg.WebhookURL != "" {
				poster := chat.NewPoster(cfg.WebhookURL, cfg.PostTimeout)
				poster.Username = cfg.Username
				poster.IconURL = cfg.IconURL
				poster.Channel = cfg.Channel
				sink = poster
				log.Infow("posting to chat webhook", "channel", cfg.Channel)
			} else {
				sink = relay.NewWriterSink(cmd.OutOrStdout())
				log.Infow("no chat webhook configured, writing messages to stdout")
			}
			r := relay.New(sink, predicates, log)

			return runWithSignals(func(ctx context.Context) error {
				if smeeURL != "" {
					return sse.NewClient(smeeURL, events, log).Run(ctx, r.Handle)
				}
				return client.Run(ctx, client.Config{ServerURL: serverURL, Events: events}, log, r.Handle)
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "WebSocket relay URL (e.g. ws://localhost:8080/ws)")
	cmd.Flags().StringVar(&smeeURL, "smee", "", "smee.io channel URL")
	cmd.Flags().StringArrayVar(&events, "event", format.SupportedEvents(), "Subscribe to GitHub event types")
	cmd.Flags().StringArrayVar(&when, "when", nil, "Only post events whose payload matches (path=value, path!=value, path=~regex, 'path exists'); repeatable, all must match")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Chat incoming-webhook URL (overrides GH_NOTIFY_WEBHOOK_URL)")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel override sent with each message")
	return cmd
}
