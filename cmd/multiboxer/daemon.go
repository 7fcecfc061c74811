package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/1broseidon/multiboxer/internal/acquire"
	"github.com/1broseidon/multiboxer/internal/claim"
	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/daemon"
	"github.com/1broseidon/multiboxer/internal/hotkeys"
	"github.com/1broseidon/multiboxer/internal/ipc"
	"github.com/1broseidon/multiboxer/internal/journal"
	"github.com/1broseidon/multiboxer/internal/layout"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/preview"
	"github.com/1broseidon/multiboxer/internal/process"
	"github.com/1broseidon/multiboxer/internal/runtimepath"
	"github.com/1broseidon/multiboxer/internal/seat"
	"github.com/1broseidon/multiboxer/internal/slot"
	"github.com/1broseidon/multiboxer/internal/swap"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func runDaemon(args []string) int {
	fs := newFlagSet("daemon", "daemon [--config PATH]", "Start the multiboxer daemon in the foreground.")
	cfgPath := fs.String("config", "", "Config file path (default: ~/.config/multiboxer/config.yaml)")
	if code := parse(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 0 {
		log.Println("daemon takes no arguments")
		fs.Usage()
		return 2
	}

	// Load configuration
	res, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := res.Config

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	log.Printf("Configuration loaded (template: %s, %d slots)", cfg.Layout.Template, len(cfg.Slots))

	// Connect to display server
	backend, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		log.Fatalf("Failed to connect to display: %v", err)
	}
	defer backend.Disconnect()

	registry := claim.NewRegistry()
	scanner := process.NewScanner()
	acquirer := acquire.New(acquire.Config{
		Interval:    cfg.Timing.AcquirePoll(),
		Timeout:     cfg.Timing.AcquireTimeout(),
		RescanEvery: cfg.Timing.AcquireRescanEvery,
		Logger:      logger.With("component", "acquire"),
	}, registry, scanner, backend)

	slots := slot.NewManager(slot.ManagerConfig{
		LaunchInterval: cfg.Timing.LaunchInterval(),
		LaunchParallel: cfg.Timing.LaunchParallel,
		Logger:         logger.With("component", "slot"),
	}, registry, acquirer, &process.Launcher{Logger: logger.With("component", "process")})

	engine := layout.NewEngine(backend, slots, cfg.Layout.Options, logger.With("component", "layout"))

	machine := swap.New(swap.Config{
		Debounce:  cfg.Timing.Debounce(),
		Stabilize: cfg.Timing.Stabilize(),
		Watchdog:  cfg.Timing.Watchdog(),
		Logger:    logger.With("component", "swap"),
	})

	var factory preview.SurfaceFactory
	if cfg.Layout.Options.UsePreviewSurfaces {
		f, err := preview.NewX11Factory(backend.XUtil(), logger.With("component", "preview"))
		if err != nil {
			log.Printf("Warning: live previews unavailable: %v", err)
		} else {
			factory = f
		}
	}
	previews := preview.NewManager(factory, logger.With("component", "preview"))

	var recorder seat.Recorder
	var repo *journal.Repository
	if cfg.Journal.Enabled {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Printf("Warning: journal disabled: %v", err)
		} else {
			defer db.Close()
			repo = journal.NewRepository(db)
			recorder = repo
		}
	}

	statePath, err := runtimepath.SeatStatePath()
	if err != nil {
		log.Printf("Warning: seat state will not persist: %v", err)
	}

	st := seat.New(seat.Config{
		Templates:      cfg,
		Topology:       backend,
		Journal:        recorder,
		Liveness:       scanner,
		StatePath:      statePath,
		PreviewRefresh: cfg.Timing.PreviewRefresh(),
		Logger:         logger.With("component", "seat"),
	}, slots, engine, machine, previews)
	if err := st.Reconfigure(cfg); err != nil {
		log.Fatalf("Failed to configure seat: %v", err)
	}

	// Setup hotkey handler
	hotkeyHandler := hotkeys.NewHandler(backend.XUtil(), backend.RootWindow(), st, logger.With("component", "hotkeys"))
	if err := hotkeyHandler.Apply(cfg.Hotkeys); err != nil {
		log.Printf("Warning: %v", err)
	}

	if cfg.Layout.Options.SwapOnActivate {
		if err := backend.WatchActiveWindow(st.WindowActivated); err != nil {
			log.Printf("Warning: active window watch unavailable: %v", err)
		}
	}

	// Create config reload channel
	reloadChan := make(chan struct{}, 1)

	// Start IPC server
	ipcServer, err := ipc.NewServer(cfg, *cfgPath, st, backend, reloadChan)
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
		Interval: cfg.Timing.ReconcileInterval(),
		Logger:   logger.With("component", "reconciler"),
	}, slots, backend.ListWindows, scanner)

	services := []daemon.Service{
		daemon.ServiceFunc{Name: "seat", Run: st.Run},
		reconciler,
	}
	if repo != nil {
		services = append(services, &daemon.Pruner{
			Journal:   repo,
			Retention: cfg.Journal.Retention(),
			Logger:    logger.With("component", "journal"),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisorDone := daemon.NewSupervisor(logger.With("component", "supervisor"), services...).ServeBackground(ctx)

	if resumed, err := st.Resume(ctx); err != nil {
		log.Printf("Warning: failed to resume seat: %v", err)
	} else if len(resumed) > 0 {
		log.Printf("Re-attaching slots from previous run: %v", resumed)
	}

	apply := func(newCfg *config.Config) {
		level.Set(parseLevel(newCfg.LogLevel))
		if err := st.Reconfigure(newCfg); err != nil {
			log.Printf("Config apply failed: %v", err)
			return
		}
		if err := hotkeyHandler.Apply(newCfg.Hotkeys); err != nil {
			log.Printf("Warning: %v", err)
		}
		log.Println("Config reloaded successfully")
	}

	// Setup signal handlers
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Handle signals and config reloads
	go func() {
		for {
			select {
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					log.Println("Received SIGHUP, reloading config...")
					newRes, err := loadConfig(*cfgPath)
					if err != nil {
						log.Printf("Config reload failed: %v", err)
						continue
					}
					ipcServer.UpdateConfig(newRes.Config)
					apply(newRes.Config)

				case os.Interrupt, syscall.SIGTERM:
					log.Println("Shutting down multiboxer daemon...")
					cancel()
					backend.QuitEventLoop()
					return
				}

			case <-reloadChan:
				// Config was reloaded via IPC, update components
				apply(ipcServer.GetConfig())

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start event loop (blocking)
	log.Println("Entering event loop...")
	backend.EventLoop()

	cancel()
	select {
	case <-supervisorDone:
	case <-time.After(5 * time.Second):
		log.Println("Warning: services did not stop in time")
	}
	hotkeyHandler.Clear()
	st.Shutdown()
	return 0
}
