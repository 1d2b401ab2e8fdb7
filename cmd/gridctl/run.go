package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridctl/gridctl/internal/api"
	"github.com/gridctl/gridctl/internal/audit"
	"github.com/gridctl/gridctl/internal/broadcast"
	"github.com/gridctl/gridctl/internal/config"
	"github.com/gridctl/gridctl/internal/endpoint"
	"github.com/gridctl/gridctl/internal/metrics"
	"github.com/gridctl/gridctl/internal/oracle"
	"github.com/gridctl/gridctl/internal/solver"
	"github.com/gridctl/gridctl/internal/tickloop"
)

var auditDBPath string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&auditDBPath, "audit-db", "gridctl-audit.db", "path to the diagnostic event SQLite database")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the dispatch controller",
	RunE:  runController,
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	auditDB, err := audit.Open(auditDBPath, 10_000)
	if err != nil {
		return fmt.Errorf("run: open audit db: %w", err)
	}
	defer auditDB.Close()

	link := endpoint.New(cfg.Network.EndpointAddr)
	// Every bad frame is counted; at most one is logged per 5s.
	var lastBadFrameLog time.Time
	link.OnBadFrame(func(err error) {
		metrics.BadFramesTotal.Inc()
		if time.Since(lastBadFrameLog) >= 5*time.Second {
			lastBadFrameLog = time.Now()
			log.Printf("endpoint: dropped malformed frame: %v", err)
		}
	})
	link.OnReconnect(func() {
		metrics.ReconnectsTotal.Inc()
		log.Printf("endpoint: connected to %s", cfg.Network.EndpointAddr)
	})

	var oracleClient *oracle.Client
	if cfg.Network.OracleAddr != "" {
		transport := oracle.NewHTTPTransport(cfg.Network.OracleAddr)
		oracleClient = oracle.New(transport, oracle.DefaultDeadline)
	}

	broadcaster := broadcast.New()

	loop := tickloop.New(
		tickloop.Config{
			TickMs:        cfg.Tick.TickMs,
			SolveBudgetMs: cfg.Tick.SolveBudgetMs,
			StaleMs:       cfg.Tick.StaleMs,
			HistoryH:      cfg.Tick.HistoryH,
			FourierK:      cfg.Forecast.FourierK,
			MinSamples:    cfg.Forecast.MinSamples,
			FourierPeriod: cfg.Forecast.FourierPeriod,
			NominalByNode: cfg.NominalByNode(),
		},
		cfg.SourceSpecs(),
		tickloop.Deps{
			Link:         link,
			Primary:      solver.RelaxedMILPSolver{},
			OracleClient: oracleClient,
			Broadcaster:  broadcaster,
			Audit:        auditDB,
		},
	)

	observerServer := api.NewServer(broadcaster)
	httpServer := &http.Server{
		Addr:    cfg.Network.ObserverAddr,
		Handler: observerServer.Handler(),
	}

	linkStop := make(chan struct{})
	loopStop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() { defer wg.Done(); link.Run(linkStop) }()
	go func() { defer wg.Done(); loop.Run(loopStop) }()
	go func() {
		log.Printf("observer API listening on %s", cfg.Network.ObserverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observer API: %v", err)
		}
	}()

	log.Printf("gridctl running: endpoint=%s observer=%s sources=%d",
		cfg.Network.EndpointAddr, cfg.Network.ObserverAddr, len(cfg.Sources))

	<-ctx.Done()
	log.Println("shutting down")

	close(loopStop)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	close(linkStop)
	wg.Wait()

	return nil
}
