// ledgerctl is the operator CLI for the governance ledger.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmerrifield20/governance-ledger/internal/config"
	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/jmerrifield20/governance-ledger/internal/server/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// Exit codes of ledgerctl verify.
const (
	exitOK       = 0
	exitInvalid  = 2
	exitFailure  = 3
	exitUsageErr = 1
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()

	var ee *exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ee):
		return ee.code
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsageErr
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	cfgFile    string
	ledgerPath string
	secret     string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Governance ledger operator CLI",
		Long: `ledgerctl inspects and verifies a governance ledger.

Configuration is read from configs/ledgerd.yaml (or --config) and the
environment, exactly as ledgerd reads it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default configs/ledgerd.yaml)")
	pf.StringVar(&opts.ledgerPath, "ledger-path", "", "ledger file (overrides governance_ledger.path)")
	pf.StringVar(&opts.secret, "secret", "", "ledger signing secret (overrides settings and environment)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newVerifyCmd(opts),
		newHeadCmd(opts),
		newAppendCmd(opts),
		newTraceCmd(opts),
		newTokenCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the ledgerctl version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

// open loads configuration and opens the configured ledger backend.
func open(ctx context.Context, cmd *cobra.Command, opts *options) (ledger.Ledger, func(), *config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: opts.cfgFile,
		LedgerPath: opts.ledgerPath,
		Secret:     opts.secret,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger, err = config.NewLogger(config.LogConfig{Level: "debug", Development: true})
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if cfg.SecretOrigin == config.SecretFromDefault {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: using the development ledger secret")
	}

	store, closeStore, err := config.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, closeStore, cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ── verify ───────────────────────────────────────────────────────────────────

type verifyOutput struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Entries  *int   `json:"entries,omitempty"`
	BadIndex *int   `json:"bad_index,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the chain; exit 0 when valid, 2 when broken, 3 on error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			res, err := runVerify(cmdContext(cmd), cmd, opts)
			if err != nil {
				_ = printJSON(out, verifyOutput{OK: false, Error: err.Error()})
				return &exitError{code: exitFailure}
			}
			if !res.Valid {
				_ = printJSON(out, verifyOutput{
					OK:       false,
					Error:    "verification_failed",
					BadIndex: &res.BadIndex,
					Reason:   res.Reason,
				})
				return &exitError{code: exitInvalid}
			}
			return printJSON(out, verifyOutput{OK: true, Entries: &res.Entries})
		},
	}
}

func runVerify(ctx context.Context, cmd *cobra.Command, opts *options) (*ledger.Verification, error) {
	l, closeStore, _, err := open(ctx, cmd, opts)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return l.VerifyChain(ctx)
}

// ── head ─────────────────────────────────────────────────────────────────────

func newHeadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Print the last well-formed entry's index, hash and timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmdContext(cmd)
			l, closeStore, _, err := open(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer closeStore()

			head, err := l.Head(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), head)
		},
	}
}

// ── append ───────────────────────────────────────────────────────────────────

func newAppendCmd(opts *options) *cobra.Command {
	var kind, traceID, body string

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append an entry and print its hash",
		Long: `Append an entry directly to the ledger file.

Only one process may write a ledger file; do not use this while ledgerd
serves the same ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind == "" {
				return errors.New("--kind is required")
			}
			var payload map[string]any
			if body != "" {
				if err := json.Unmarshal([]byte(body), &payload); err != nil {
					return fmt.Errorf("--body must be a JSON object: %w", err)
				}
			}

			ctx := cmdContext(cmd)
			l, closeStore, _, err := open(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer closeStore()

			hash, err := l.AppendEntry(ctx, kind, payload, traceID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "entry kind (required)")
	cmd.Flags().StringVar(&traceID, "trace", "", "trace id")
	cmd.Flags().StringVar(&body, "body", "", "entry body as a JSON object")
	return cmd
}

// ── trace ────────────────────────────────────────────────────────────────────

func newTraceCmd(opts *options) *cobra.Command {
	var requestLogID int64
	var kinds []string

	cmd := &cobra.Command{
		Use:   "trace [trace-id]",
		Short: "Print the entries recorded for a trace id or a request log id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (requestLogID > 0) {
				return errors.New("give exactly one of a trace id or --request-log-id")
			}

			ctx := cmdContext(cmd)
			l, closeStore, _, err := open(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer closeStore()

			var entries []*ledger.Entry
			if len(args) == 1 {
				entries, err = ledger.EntriesForTrace(ctx, l, args[0])
			} else {
				entries, err = ledger.EntriesForRequestLog(ctx, l, requestLogID, kinds...)
			}
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []*ledger.Entry{}
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().Int64Var(&requestLogID, "request-log-id", 0, "select entries by body.request_log_id")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "kinds to include with --request-log-id")
	return cmd
}

// ── token ────────────────────────────────────────────────────────────────────

func newTokenCmd(opts *options) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an ingest token for POST /api/v1/ledger/entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{ConfigFile: opts.cfgFile})
			if err != nil {
				return err
			}
			if cfg.Server.IngestSecret == "" {
				return errors.New("server.ingest_secret is not configured")
			}
			tokens, err := handler.NewIngestTokenIssuer(cfg.Server.IngestSecret, ttl)
			if err != nil {
				return err
			}
			signed, err := tokens.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "producer", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
