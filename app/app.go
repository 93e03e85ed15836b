// Package app wires the parsed Config into a running Supervisor: one
// Manager, worker-count Workers, and one Listener per enabled
// address/port, with cooperative shutdown on SIGINT/SIGTERM.
package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/searchktools/staticd/config"
	"github.com/searchktools/staticd/core"
	"github.com/searchktools/staticd/core/observability"
	"github.com/searchktools/staticd/core/pools"
	"github.com/searchktools/staticd/core/transport"
)

// App is the Process Supervisor: it owns the Manager, Workers and
// Listeners for the lifetime of the process.
type App struct {
	cfg       *config.Config
	settings  *config.Manager
	manager   *core.Manager
	monitor   *observability.Monitor
	workers   []*core.Worker
	listeners []*core.Listener
	statsStop chan struct{}
}

// New constructs a Supervisor from cfg. settings is the runtime-tunable
// store layered under cfg; it is populated here and may be watched for
// live adjustments.
func New(cfg *config.Config, settings *config.Manager) *App {
	settings.Set("worker-count", cfg.WorkerCount)
	settings.Set("max-connections", cfg.MaxConnections)
	settings.Set("document-root", cfg.DocumentRoot)

	return &App{
		cfg:       cfg,
		settings:  settings,
		manager:   core.NewManager(cfg.MaxConnections),
		monitor:   observability.NewMonitor(),
		statsStop: make(chan struct{}),
	}
}

// Run builds the Workers and Listeners, starts every event loop, and
// blocks until a shutdown signal arrives or startup fails.
func (a *App) Run() error {
	// SIGPIPE on a half-closed socket must not kill the process; every
	// write already checks its own error return.
	signal.Ignore(syscall.SIGPIPE)

	pools.Apply(pools.ForCapacity(a.cfg.MaxConnections, a.cfg.PerTransferBufferBytes))

	if err := a.startWorkers(); err != nil {
		return err
	}
	if err := a.startListeners(); err != nil {
		return err
	}

	a.watchLiveStats()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("supervisor: signal %v received, shutting down", sig)

	a.shutdown()
	return nil
}

func (a *App) startWorkers() error {
	for i := 0; i < a.cfg.WorkerCount; i++ {
		w, err := core.NewWorker(i, a.cfg.MaxConnections, a.cfg.PerTransferBufferBytes, a.cfg.DocumentRoot, a.manager, a.monitor)
		if err != nil {
			return fmt.Errorf("supervisor: worker %d: %w", i, err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("supervisor: worker %d start: %w", i, err)
		}
		a.workers = append(a.workers, w)
	}
	return nil
}

func (a *App) startListeners() error {
	httpCfg := transport.ListenConfig{
		Address: a.cfg.IPv4BindAddress,
		Port:    a.cfg.HTTPPort,
	}
	httpListener, err := core.NewListener("http", httpCfg, nil, a.manager, a.workers)
	if err != nil {
		return fmt.Errorf("supervisor: http listener: %w", err)
	}
	if err := httpListener.Start(); err != nil {
		return fmt.Errorf("supervisor: http listener start: %w", err)
	}
	a.listeners = append(a.listeners, httpListener)
	log.Printf("supervisor: http listening on %s:%d", a.cfg.IPv4BindAddress, a.cfg.HTTPPort)

	if a.cfg.EnableIPv6 {
		v6Cfg := httpCfg
		v6Cfg.Address = a.cfg.IPv6BindAddress
		v6Cfg.IPv6 = true
		v6Listener, err := core.NewListener("http6", v6Cfg, nil, a.manager, a.workers)
		if err != nil {
			return fmt.Errorf("supervisor: http6 listener: %w", err)
		}
		if err := v6Listener.Start(); err != nil {
			return fmt.Errorf("supervisor: http6 listener start: %w", err)
		}
		a.listeners = append(a.listeners, v6Listener)
		log.Printf("supervisor: http listening on [%s]:%d", a.cfg.IPv6BindAddress, a.cfg.HTTPPort)
	}

	if a.cfg.EnableTLS {
		tlsConf, err := core.LoadTLSConfig(a.cfg.TLSCertificatePath, a.cfg.TLSPrivateKeyPath)
		if err != nil {
			return fmt.Errorf("supervisor: tls config: %w", err)
		}

		httpsCfg := transport.ListenConfig{
			Address: a.cfg.IPv4BindAddress,
			Port:    a.cfg.HTTPSPort,
		}
		httpsListener, err := core.NewListener("https", httpsCfg, tlsConf, a.manager, a.workers)
		if err != nil {
			return fmt.Errorf("supervisor: https listener: %w", err)
		}
		if err := httpsListener.Start(); err != nil {
			return fmt.Errorf("supervisor: https listener start: %w", err)
		}
		a.listeners = append(a.listeners, httpsListener)
		log.Printf("supervisor: https listening on %s:%d", a.cfg.IPv4BindAddress, a.cfg.HTTPSPort)
	}

	return nil
}

// watchLiveStats logs whenever live connection usage changes, and starts
// the periodic reporter that records it into the settings store —
// exercising config.Manager's get/set/watch mechanism as the runtime-
// tunable layer described for this project.
func (a *App) watchLiveStats() {
	a.settings.Watch("connections.in_use", func(key string, value any) {
		log.Printf("supervisor: %s = %v (cap %d)", key, value, a.manager.Cap())
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		last := -1
		for {
			select {
			case <-a.statsStop:
				return
			case <-ticker.C:
				if inUse := a.manager.InUse(); inUse != last {
					a.settings.Set("connections.in_use", inUse)
					last = inUse
				}
				for status, snap := range a.monitor.Snapshot() {
					log.Printf("supervisor: status %d: %d requests, avg %v", status, snap.Count, snap.AvgDuration)
				}
			}
		}
	}()
}

// shutdown cooperatively stops every Listener and Worker poller, in two
// joined phases: all Listeners first, then all Workers. A Listener can
// still be mid-accept and round-robin-assign a Job to a Worker right up
// until it stops, so every Listener must be fully stopped and joined
// before any Worker is — otherwise a Job can land on a Worker whose
// poller has already exited and hang until the socket times out.
func (a *App) shutdown() {
	close(a.statsStop)

	var listenerWG sync.WaitGroup
	for _, l := range a.listeners {
		listenerWG.Add(1)
		go func(l *core.Listener) {
			defer listenerWG.Done()
			l.Stop()
		}(l)
	}
	listenerWG.Wait()

	var workerWG sync.WaitGroup
	for _, w := range a.workers {
		workerWG.Add(1)
		go func(w *core.Worker) {
			defer workerWG.Done()
			w.Stop()
		}(w)
	}
	workerWG.Wait()

	log.Printf("supervisor: shutdown complete")
}
