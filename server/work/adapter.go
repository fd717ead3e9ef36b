package work

import (
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"sosguard/colors"
	"sosguard/server/logger"
)

var logg = logger.NewLogger()

// Adapter runs fire-and-forget jobs(e.g. the advisory fetch) & cron
// scheduled ones(e.g. the settings backup). There is no durable queue:
// every job here is discardable by design.
type Adapter struct {
	cronScheduler *gocron.Scheduler
	wg            sync.WaitGroup
}

func NewAdapter(timeZoneArg string) *Adapter {
	timeZone, err := time.LoadLocation(timeZoneArg)
	if err != nil {
		timeZone = time.UTC
	}

	cronScheduler := gocron.NewScheduler(timeZone)
	cronScheduler.TagsUnique()

	return &Adapter{cronScheduler: cronScheduler}
}

// Start starts the cron scheduler
func (adapter *Adapter) Start() {
	logg.Info("Starting job scheduler")
	adapter.cronScheduler.StartAsync()
}

// Stop stops the cron scheduler & waits for in-flight jobs
func (adapter *Adapter) Stop() {
	logg.Info("Stopping job scheduler")
	adapter.cronScheduler.Stop()
	adapter.wg.Wait()
}

// Perform runs the job now, off the calling goroutine
func (adapter *Adapter) Perform(name string, fn func()) {
	adapter.wg.Add(1)

	go func() {
		defer adapter.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf(colors.Red("[job %v] panicked: %v"), name, r)
			}
		}()

		fn()
	}()
}

// PeriodicallyPerform runs the job on the given cron expression
func (adapter *Adapter) PeriodicallyPerform(cronExpression, name string, fn func()) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(name).Do(func() {
		adapter.Perform(name, fn)
	})
	if err != nil {
		return err
	}

	log.Printf(colors.Blue("[job %v] scheduled with '%v'"), name, cronExpression)

	return nil
}

// RemovePeriodicJob removes a scheduled job by name
func (adapter *Adapter) RemovePeriodicJob(name string) {
	adapter.cronScheduler.RemoveByTag(name)
}
