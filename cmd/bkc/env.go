package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/cmd/internal/passphrase"
	"backchain/config"
	"backchain/format"
	"backchain/metadata"
	"backchain/observability"
	"backchain/observability/logging"
	telemetry "backchain/observability/otel"
	"backchain/orchestrator"
	"backchain/views"
	"backchain/wallet"
)

const (
	serviceName         = "bkc"
	receiptPollInterval = 2 * time.Second
)

var errNoKeystore = errors.New("wallet.keystore is not configured; run `bkc generate-key` and set it in the config")

type globalFlags struct {
	configPath string
	assumeYes  bool
	verbose    bool
}

// env carries everything a command needs once the config is loaded and the
// chain is reachable.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	views   *views.Aggregator
	orch    *orchestrator.Orchestrator
	account common.Address
	out     io.Writer
	notes   *printNotifier
	closers []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// writeContext bounds a write by the configured receipt timeout.
func (e *env) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := e.cfg.Transactions.ReceiptTimeout.Duration; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// opener builds an env. signing selects a connected wallet session.
type opener func(ctx context.Context, g *globalFlags, signing bool, stdout io.Writer, stdin io.Reader) (*env, error)

func openEnv(ctx context.Context, g *globalFlags, signing bool, stdout io.Writer, stdin io.Reader) (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	level := logging.ParseLevel(cfg.Logging.Level)
	if !g.verbose && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Output:     os.Stderr,
	})
	e := &env{cfg: cfg, logger: logger, out: stdout}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		ChainID:     cfg.Network.ChainID,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	e.closers = append(e.closers, func() { _ = shutdown(context.Background()) })

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Network.RequestTimeout.Duration)
	client, err := ethclient.DialContext(dialCtx, cfg.Network.RPCURL)
	cancel()
	if err != nil {
		e.Close()
		logger.Error("dial rpc", logging.MaskURL("rpc_url", cfg.Network.RPCURL), slog.String("error", err.Error()))
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	e.closers = append(e.closers, client.Close)

	addrs, err := cfg.Addresses()
	if err != nil {
		e.Close()
		return nil, err
	}

	var provider wallet.Provider
	if signing {
		if strings.TrimSpace(cfg.Wallet.KeystorePath) == "" {
			e.Close()
			return nil, errNoKeystore
		}
		var watchlist *wallet.Watchlist
		if path := strings.TrimSpace(cfg.Wallet.WatchlistPath); path != "" {
			watchlist, err = wallet.OpenWatchlist(path)
			if err != nil {
				e.Close()
				return nil, err
			}
			e.closers = append(e.closers, func() { _ = watchlist.Close() })
		}
		pass := passphrase.NewSource(cfg.Wallet.PassphraseEnv, "wallet keystore")
		provider = wallet.NewKeystoreProvider(client, cfg.Wallet.KeystorePath, pass.Get, watchlist)
		logger.Debug("keystore provider configured",
			logging.MaskField("keystore", cfg.Wallet.KeystorePath),
			logging.MaskField("passphrase_env", cfg.Wallet.PassphraseEnv))
	}

	connector, err := wallet.NewConnector(client, provider, addrs, cfg.ChainIDBig(), wallet.WithLogger(logger))
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, connector.Disconnect)

	reader := resilient.NewReader(resilient.WithLogger(logger), resilient.WithMetrics(observability.Reads()))
	e.views = views.New(connector,
		views.WithReader(reader),
		views.WithTiers(cfg.BoosterTiers),
		views.WithFetcher(metadata.NewFetcher(cfg.Network.IPFSGateway, nil)),
		views.WithLogger(logger),
	)
	e.notes = newPrintNotifier(stdout)
	e.orch = orchestrator.New(connector,
		orchestrator.WithNotifier(orchestrator.Tee(
			orchestrator.LogNotifier{Logger: logger},
			e.notes,
		)),
		orchestrator.WithRefresher(e.views),
		orchestrator.WithToleranceBips(cfg.Transactions.ApprovalToleranceBips),
		orchestrator.WithWaiter(chain.NewReceiptPoller(client, receiptPollInterval).WithLogger(logger)),
		orchestrator.WithConfirmer(promptConfirmer{in: bufio.NewReader(stdin), out: stdout, assumeYes: g.assumeYes}),
		orchestrator.WithAssetRegistrar(connector),
		orchestrator.WithReader(reader),
		orchestrator.WithBoosterCache(e.views.BoosterCache()),
		orchestrator.WithCertificateCache(e.views.CertificateCache()),
		orchestrator.WithExplorer(cfg.Network.ExplorerURL),
		orchestrator.WithLogger(logger),
	)
	e.closers = append(e.closers, e.orch.Wait)

	if signing {
		session, err := connector.Connect(ctx)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connect wallet: %w", err)
		}
		e.account = session.User
		fmt.Fprintf(stdout, "Connected %s on chain %s\n", format.Address(session.User), session.ChainID)
	}
	return e, nil
}

// printNotifier echoes orchestrator notifications on the terminal and
// remembers which transactions it has already shown.
type printNotifier struct {
	w io.Writer

	mu    sync.Mutex
	shown map[common.Hash]bool
}

func newPrintNotifier(w io.Writer) *printNotifier {
	return &printNotifier{w: w, shown: make(map[common.Hash]bool)}
}

func (p *printNotifier) Notify(_ context.Context, n orchestrator.Notification) {
	line := fmt.Sprintf("[%s] %s", n.Level, n.Message)
	if n.Link != "" {
		line += " " + n.Link
	} else if n.HasTx() {
		line += " " + n.TxHash.Hex()
	}
	p.mu.Lock()
	if n.HasTx() {
		p.shown[n.TxHash] = true
	}
	p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// Shown reports whether a notification already carried hash.
func (p *printNotifier) Shown(hash common.Hash) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown[hash]
}

// promptConfirmer asks on the terminal before destructive writes.
type promptConfirmer struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func (c promptConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if c.assumeYes {
		return true, nil
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
