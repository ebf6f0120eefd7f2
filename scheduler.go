package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/giwty/save-backup-manager/db"
	"github.com/robfig/cron"
	"go.uber.org/multierr"
)

// newScheduler parses a standard 5 field cron spec and registers job on a
// stopped cron.
func newScheduler(spec string, job func()) (*cron.Cron, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule [%v]: %w", spec, err)
	}
	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(job))
	return c, nil
}

// scheduledBackup rescans the titles and backs up every save and extdata.
// Runs that start while the previous one is still copying are skipped.
func (c *Console) scheduledBackup(running *atomic.Bool) {
	if !running.CompareAndSwap(false, true) {
		c.sugarLogger.Warn("previous scheduled backup still running, skipping")
		return
	}
	defer running.Store(false)

	if _, err := c.catalog.Build(false); err != nil {
		c.sugarLogger.Errorf("scheduled scan failed - %v", err)
		return
	}
	var errs error
	total := 0
	for _, mode := range []db.Mode{db.ModeSave, db.ModeExtdata} {
		count, err := c.manager.BackupAll(mode, nil)
		total += count
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		c.sugarLogger.Errorf("scheduled backup finished with %d failures - %v", len(multierr.Errors(errs)), errs)
	}
	c.sugarLogger.Infof("scheduled backup created %d backups", total)
	fmt.Printf("scheduled backup created %d backups\n", total)
}

func (c *Console) processSchedule() int {
	var running atomic.Bool
	scheduler, err := newScheduler(c.settings.Schedule, func() { c.scheduledBackup(&running) })
	if err != nil {
		fmt.Println(err)
		return 1
	}

	fmt.Printf("Backing up on schedule [%v], press Ctrl+C to stop\n", c.settings.Schedule)
	scheduler.Start()
	defer scheduler.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals
	fmt.Println("Stopping")
	return 0
}
