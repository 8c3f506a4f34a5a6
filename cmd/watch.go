package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"github.com/nickromney-org/ota-release-selector/internal/config"
	"github.com/nickromney-org/ota-release-selector/pkg/logger"
	"github.com/nickromney-org/ota-release-selector/pkg/ota"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll for new releases and install them",
	Long: `Check the latest release at a fixed interval and install it whenever it is
newer than the installed version. Repeated failures open a circuit breaker
that skips checks until the cooldown has passed.`,
	Example: `  ota watch -r acme/widget-firmware -c v1.2.0 --interval 30m --path /opt/widget/firmware.bin`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&installPath, "path", "", "where to write the image (default firmware.bin)")
	watchCmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not keep the previous image as <path>.bak")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "time between checks (default 1h)")
	rootCmd.AddCommand(watchCmd)
}

// watcher installs the latest release whenever it passes the filter
type watcher struct {
	updater *ota.Updater
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
	out     io.Writer
}

func newWatcher(updater *ota.Updater, wc config.WatchConfig, log logrus.FieldLogger, out io.Writer) *watcher {
	maxFailures := wc.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	settings := gobreaker.Settings{
		Name:    "release-check",
		Timeout: wc.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &watcher{
		updater: updater,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
		out:     out,
	}
}

// pollOnce runs a single check. A latest release that does not pass the
// filter is not a failure; an install raises the baseline to its tag.
func (w *watcher) pollOnce(ctx context.Context) (*ota.Installation, error) {
	res, err := w.breaker.Execute(func() (interface{}, error) {
		result, err := w.updater.InstallLatest(ctx)
		if errors.Is(err, ota.ErrSelection) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	result, _ := res.(*ota.Installation)
	if result != nil {
		w.updater.SetCurrentVersion(result.Release.TagName)
	}
	return result, nil
}

// run polls until ctx is cancelled
func (w *watcher) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := w.pollOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState):
			w.log.Debug("Check skipped, circuit breaker open")
		case err != nil:
			w.log.WithError(err).Error("Release check failed")
		case result != nil:
			printInstallation(w.out, result)
		default:
			w.log.WithField("current", w.updater.Config().NewerThan).Debug("No newer release")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	updater, origin, cfg, err := newInstallUpdater(cmd)
	if err != nil {
		return err
	}

	interval := cfg.Watch.Interval
	if cmd.Flags().Changed("interval") {
		interval = watchInterval
	}
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Module("watch")
	log.WithFields(logrus.Fields{
		"source":   origin,
		"interval": interval.String(),
		"current":  cfg.CurrentVersion,
	}).Info("Watching for releases")

	return newWatcher(updater, cfg.Watch, log, cmd.OutOrStdout()).run(ctx, interval)
}
