package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/waitsampling-io/waitsampling"
	"github.com/waitsampling-io/waitsampling/collector"
	"github.com/waitsampling-io/waitsampling/readout"
)

var (
	configPath    string
	socketPath    string
	supervisorPid int32
	demoWorkers   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a collector with a simulated workload",
	Long: `Run starts the sampling collector over a registry of simulated
workers and serves the readout API on a local socket. The configuration
file is re-read on SIGHUP or when the file changes on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCollector(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file.")
	runCmd.Flags().StringVar(&socketPath, "socket", "", "Readout socket path. Defaults to a per-pid path in the temp dir.")
	runCmd.Flags().Int32Var(&supervisorPid, "supervisor", 0, "PID of a supervising process; its death terminates the collector.")
	runCmd.Flags().IntVar(&demoWorkers, "workers", 0, "Number of simulated workers. Overrides the config file.")
	rootCmd.AddCommand(runCmd)
}

func runCollector(parent context.Context) error {
	fc, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}
	if demoWorkers > 0 {
		fc.Workers = demoWorkers
	}
	socket := socketPath
	if socket == "" {
		socket = fc.Socket
	}
	if socket == "" {
		socket = waitsampling.SocketPath(os.Getpid())
	}

	reg := waitsampling.NewRegistry(fc.Workers)

	opts := collector.Options{
		Registry:      reg,
		Config:        fc.sampling(),
		SupervisorPID: supervisorPid,
	}
	if configPath != "" {
		opts.Source = fileSource{path: configPath}
	}
	col, err := collector.New(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// SIGHUP triggers a synchronous config re-read at the next loop
	// iteration, like the classic postmaster reload signal.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			log.Info("reload signal received")
			col.Reload()
		}
	}()

	if configPath != "" {
		stop, err := watchConfig(configPath, col)
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := readout.NewServer(col, readout.WithEventNamer(DemoEventNamer))
	defer srv.Close()
	go func() {
		if err := srv.ListenAndServe(socket); err != nil {
			log.WithError(err).Error("readout server failed")
			cancel()
		}
	}()

	go runWorkload(ctx, reg, fc.Workers)

	return col.Run(ctx)
}

// watchConfig requests a collector reload whenever the config file's
// directory reports a change to the file.
func watchConfig(path string, col *collector.Collector) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIf(err, "creating config watcher")
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, errors.WrapIff(err, "watching %s", filepath.Dir(path))
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				log.WithField("file", path).Info("config file changed, reloading")
				col.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Error("config watcher error")
			}
		}
	}()
	return func() { _ = watcher.Close() }, nil
}
