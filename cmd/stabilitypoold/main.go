// Command stabilitypoold runs one federation peer's stability pool
// module as a standalone JSON-RPC service, for single-peer test
// federations and local development. A production deployment wires
// pool.StabilityPool into the surrounding federation's own consensus
// loop and transaction dispatch instead of this binary's simplified
// round ticker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/luxfi/log"

	"github.com/luxfi/stabilitypool/api"
	"github.com/luxfi/stabilitypool/config"
	"github.com/luxfi/stabilitypool/logging"
	"github.com/luxfi/stabilitypool/oracle"
	"github.com/luxfi/stabilitypool/pool"
	"github.com/luxfi/stabilitypool/store"
)

func main() {
	app := &cli.App{
		Name:  "stabilitypoold",
		Usage: "run a stability pool module peer",
		Commands: []*cli.Command{
			runCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "stabilitypoold:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "load config and serve the module's JSON-RPC API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to the peer's config file"},
			&cli.StringFlag{Name: "db", Value: "", Usage: "goleveldb directory; empty runs an in-memory store"},
			&cli.StringFlag{Name: "listen", Value: ":8745", Usage: "address the JSON-RPC API listens on"},
			&cli.StringFlag{Name: "audit-log", Value: "", Usage: "rotating file recording every applied epoch-end outcome; empty disables the audit trail"},
			&cli.Uint64Flag{Name: "peer-id", Value: 0, Usage: "this peer's id within the federation's vote set"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	appLog := logging.New("stabilitypoold")

	var audit *lumberjack.Logger
	if path := c.String("audit-log"); path != "" {
		audit = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		defer audit.Close()
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openStore(c.String("db"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	oracleClient, err := buildOracle(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("building oracle client: %w", err)
	}

	p := pool.New(db, cfg, oracleClient, log.Root().New("component", "pool"))

	server := &http.Server{
		Addr:    c.String("listen"),
		Handler: api.NewHandler(p, log.Root().New("component", "api")),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		appLog.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return runRoundLoop(groupCtx, p, c.Uint64("peer-id"), audit, appLog)
	})

	return group.Wait()
}

// runRoundLoop polls the epoch boundary at a fixed cadence and, once
// crossed, proposes and immediately self-applies this peer's EpochEnd
// vote — the single-peer stand-in for a federation's own consensus
// loop delivering ActionProposed/EpochEnd items from every peer.
func runRoundLoop(ctx context.Context, p *pool.StabilityPool, peerID uint64, audit *lumberjack.Logger, appLog logging.Logger) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := tickRound(ctx, p, peerID, now, audit, appLog); err != nil {
				appLog.Warn("round tick failed", "err", err)
			}
		}
	}
}

func tickRound(ctx context.Context, p *pool.StabilityPool, peerID uint64, now time.Time, audit *lumberjack.Logger, appLog logging.Logger) error {
	tx := p.NewTx()
	canPropose, err := p.CanProposeEpochEnd(tx, now)
	if err != nil {
		return err
	}
	if !canPropose {
		return nil
	}

	item, ok, err := p.BuildEpochEndProposal(ctx, tx, now)
	if err != nil {
		return err
	}
	if !ok {
		return tx.Commit()
	}

	outcome, err := p.ProcessEpochEnd(tx, peerID, item)
	if err != nil {
		return err
	}
	appLog.Info("epoch end vote applied", "peer_id", peerID, "epoch_id", item.EpochID, "verdict", outcome.Verdict.String())
	if audit != nil {
		fmt.Fprintf(audit, "%s epoch_id=%d peer_id=%d verdict=%s\n", now.UTC().Format(time.RFC3339), item.EpochID, peerID, outcome.Verdict.String())
	}
	return tx.Commit()
}

func openStore(dir string) (store.Database, error) {
	if dir == "" {
		return store.NewMemory(), nil
	}
	return store.OpenLevelDB(dir)
}

func buildOracle(cfg config.OracleConfig) (oracle.Client, error) {
	switch cfg.Kind {
	case config.OracleBitMex:
		return oracle.NewBitMex(), nil
	case config.OracleMock:
		return oracle.NewMock(cfg.URL), nil
	case config.OracleFile:
		return oracle.NewFile(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown oracle kind %q", cfg.Kind)
	}
}
