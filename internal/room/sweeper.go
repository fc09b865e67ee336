package room

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// Sweeper force-settles rooms that sit in score_submission longer than the
// configured timeout, so a captain who never submits cannot wedge a room
// forever. A zero timeout disables the sweeper entirely; the observed
// client design has no such deadline, so this is opt-in.
type Sweeper struct {
	svc     *Service
	timeout time.Duration
	logger  *log.Logger
	sched   gocron.Scheduler
}

// NewSweeper builds a sweeper that scans every interval for rooms whose
// play ended more than timeout ago without an agreed score.
func NewSweeper(svc *Service, timeout, interval time.Duration, logger *log.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = log.New()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sw := &Sweeper{svc: svc, timeout: timeout, logger: logger, sched: sched}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sw.sweep),
	); err != nil {
		return nil, err
	}
	return sw, nil
}

// Start begins the periodic sweep.
func (sw *Sweeper) Start() { sw.sched.Start() }

// Stop shuts the scheduler down.
func (sw *Sweeper) Stop() error { return sw.sched.Shutdown() }

func (sw *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-sw.timeout)
	ids, err := sw.svc.Store().StaleSubmissions(ctx, cutoff)
	if err != nil {
		sw.logger.WithError(err).Error("sweep: listing stale submissions failed")
		return
	}
	for _, id := range ids {
		if err := sw.svc.ForceSettle(ctx, id, "score submission timed out"); err != nil {
			sw.logger.WithError(err).WithField("room", id).Error("sweep: force settle failed")
		}
	}
}
