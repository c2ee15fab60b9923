package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/branched-services/go-evmprobe/chain"
	"github.com/branched-services/go-evmprobe/internal/config"
	"github.com/branched-services/go-evmprobe/internal/dapp"
	"github.com/branched-services/go-evmprobe/internal/metrics"
	"github.com/branched-services/go-evmprobe/internal/server"
	"github.com/branched-services/go-evmprobe/transact"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "evmprobe",
		Short:         "evmprobe - talk to EVM contracts whose exact ABI is unknown",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("EVMPROBE_CONFIG"), "path to a TOML config file")

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(configPath)
	}

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newNetworkCmd(&configPath))
	rootCmd.AddCommand(newBalanceCmd(&configPath))
	rootCmd.AddCommand(newTokenBalanceCmd(&configPath))
	rootCmd.AddCommand(newStateCmd(&configPath))
	rootCmd.AddCommand(newInspectCmd(&configPath))
	rootCmd.AddCommand(newSubmitCmd(&configPath))

	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func newNetworkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Show the node connection summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				fmt.Println(a.svc.ConnectionSummary(ctx))
				return nil
			})
		},
	}
}

func newBalanceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the native balance of an address (default: the signing account)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				account := a.svc.Address()
				if len(args) == 1 {
					var err error
					if account, err = parseAddress("address", args[0]); err != nil {
						return err
					}
				}
				bal, err := a.svc.Balance(ctx, account)
				if err != nil {
					return err
				}
				w := newTable()
				fmt.Fprintf(w, "ADDRESS\tWEI\tETH\n")
				fmt.Fprintf(w, "%s\t%s\t%s\n", bal.Address.Hex(), bal.Wei, bal.Ether)
				return w.Flush()
			})
		},
	}
}

func newTokenBalanceCmd(configPath *string) *cobra.Command {
	var token, owner string

	cmd := &cobra.Command{
		Use:   "erc20-balance",
		Short: "Show an ERC-20 balance scaled by the token's decimals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				tokenAddr, err := parseAddress("token", orDefault(token, a.cfg.Contracts.Token))
				if err != nil {
					return err
				}
				ownerAddr := a.svc.Address()
				if owner != "" {
					if ownerAddr, err = parseAddress("owner", owner); err != nil {
						return err
					}
				}
				amt, err := a.svc.TokenBalance(ctx, tokenAddr, ownerAddr)
				if err != nil {
					return err
				}
				w := newTable()
				fmt.Fprintf(w, "TOKEN\tOWNER\tRAW\tDECIMALS\tAMOUNT\n")
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", tokenAddr.Hex(), ownerAddr.Hex(), amt.Raw, amt.Decimals, amt.Human)
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "token address (default: contracts.token)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner address (default: the signing account)")

	return cmd
}

func newStateCmd(configPath *string) *cobra.Command {
	var contract string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the current round and pot of a round-based game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				game, err := parseAddress("contract", orDefault(contract, a.cfg.Contracts.Game))
				if err != nil {
					return err
				}
				st, err := a.svc.State(ctx, game)
				if err != nil {
					return err
				}
				w := newTable()
				fmt.Fprintf(w, "CONTRACT\tROUND\tPOT\n")
				fmt.Fprintf(w, "%s\t%s\t%s\n", game.Hex(), st.Round, st.Pot)
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "game address (default: contracts.game)")

	return cmd
}

func newInspectCmd(configPath *string) *cobra.Command {
	var contract string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Probe a round-based game for everything it exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				game, err := parseAddress("contract", orDefault(contract, a.cfg.Contracts.Game))
				if err != nil {
					return err
				}
				in, err := a.svc.Inspect(ctx, game)
				if err != nil {
					return err
				}
				open, winner := "unknown", "unknown"
				if in.Open != nil {
					open = fmt.Sprint(*in.Open)
				}
				if in.Winner != nil {
					winner = in.Winner.Hex()
				}
				w := newTable()
				fmt.Fprintf(w, "CONTRACT\tROUND\tPOT\tOPEN\tWINNER\n")
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", game.Hex(), in.Round, in.Pot, open, winner)
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "game address (default: contracts.game)")

	return cmd
}

func newSubmitCmd(configPath *string) *cobra.Command {
	var contract, guess string
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a guess to a round-based game",
		Long: `Submit a guess to a round-based game.

The guess is sent as submit(uint256) to the game contract and the
transaction hash is printed. With --wait the command also waits for the
receipt and fails if the transaction reverted.

EXAMPLES:
  evmprobe submit --guess 42
  evmprobe submit --contract 0x... --guess 42 --wait
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				game, err := parseAddress("contract", orDefault(contract, a.cfg.Contracts.Game))
				if err != nil {
					return err
				}
				n, ok := new(big.Int).SetString(guess, 10)
				if !ok || n.Sign() < 0 {
					return fmt.Errorf("--guess: %q is not a non-negative integer", guess)
				}
				hash, err := a.svc.Submit(ctx, game, n)
				if err != nil {
					return err
				}
				fmt.Printf("tx:       %s\nexplorer: %s%s\n", hash.Hex(), a.cfg.Tx.ExplorerTxURL, hash.Hex())
				if !wait {
					return nil
				}
				r, err := a.svc.WaitForReceipt(ctx, hash)
				switch {
				case err != nil:
					return err
				case r == nil:
					return fmt.Errorf("no receipt for %s after %s", hash.Hex(), a.cfg.ReceiptTimeout())
				case !r.Successful():
					return fmt.Errorf("transaction %s reverted in block %s", hash.Hex(), r.Block())
				}
				fmt.Printf("mined in block %s\n", r.Block())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "game address (default: contracts.game)")
	cmd.Flags().StringVar(&guess, "guess", "", "the guess to submit (required)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the receipt")
	_ = cmd.MarkFlagRequired("guess")

	return cmd
}

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *chain.Client
	svc    *dapp.Service
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := setupLogger(cfg)
	metrics.Init(cfg.Metrics.Enabled)

	account, err := transact.NewAccount(cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	opts := []chain.Option{chain.WithLogger(logger)}
	if cfg.Chain.RequestsPerSecond > 0 {
		opts = append(opts, chain.WithRateLimit(cfg.Chain.RequestsPerSecond, cfg.Chain.Burst))
	}
	client, err := chain.Dial(ctx, chain.Config{ChainID: cfg.ChainIDBig(), Endpoint: cfg.Chain.RPCURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to node: %w", err)
	}

	pipeline := transact.New(client, account, cfg.ChainIDBig(),
		transact.WithFallbackGasLimit(cfg.Tx.FallbackGasLimit),
		transact.WithLogger(logger),
	)
	svc := dapp.NewService(client, pipeline, account.Address(),
		dapp.WithEndpoint(cfg.Chain.RPCURL),
		dapp.WithReceiptTiming(cfg.ReceiptTimeout(), cfg.PollInterval()),
		dapp.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, client: client, svc: svc}, nil
}

func (a *app) Close() {
	a.client.Close()
}

// withApp wires the dependencies, runs fn and releases them.
func withApp(ctx context.Context, configPath string, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func runServe(configPath string) error {
	a, err := newApp(context.Background(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting evmprobe", "version", version, "account", a.svc.Address().Hex())

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	logger.Info("node", "summary", a.svc.ConnectionSummary(startupCtx))
	cancel()

	srv := server.New(a.cfg, a.svc, logger)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if strings.EqualFold(cfg.Logging.Format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseAddress(name, v string) (common.Address, error) {
	if v == "" {
		return common.Address{}, fmt.Errorf("%s address is required", name)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s: %q is not a hex address", name, v)
	}
	return common.HexToAddress(v), nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}
