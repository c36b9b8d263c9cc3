package session

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// Default pre-open roll time: weekdays 09:00 exchange-local, half an
// hour before the regular session opens.
const defaultRollSpec = "0 9 * * 1-5"

// RollScheduler fires a callback at a fixed pre-open time each weekday
// in the exchange timezone. The host uses it to tear down and rebuild
// symbol pipelines for the new trading date; indicator state machines
// are never reset any other way.
type RollScheduler struct {
	cron   *cron.Cron
	logger *logger.Logger
	onRoll func(tradingDate string)
}

// NewRollScheduler creates a scheduler firing per rollSpec (standard
// five-field cron syntax, empty for the 09:00 weekday default) in the
// clock's timezone.
func NewRollScheduler(clock *types.MarketClock, rollSpec string, log *logger.Logger, onRoll func(tradingDate string)) (*RollScheduler, error) {
	if rollSpec == "" {
		rollSpec = defaultRollSpec
	}

	scheduler := &RollScheduler{
		cron:   cron.New(cron.WithLocation(clock.Location())),
		logger: log,
		onRoll: onRoll,
	}

	if _, err := scheduler.cron.AddFunc(rollSpec, func() {
		tradingDate := clock.SessionDate(time.Now())
		log.Info("session roll", zap.String("trading_date", tradingDate))

		if scheduler.onRoll != nil {
			scheduler.onRoll(tradingDate)
		}
	}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid session roll spec", err)
	}

	return scheduler, nil
}

// Start begins firing roll events.
func (s *RollScheduler) Start() {
	s.cron.Start()
	s.logger.Info("session roll scheduler started")
}

// Stop stops the scheduler; already-running callbacks finish.
func (s *RollScheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("session roll scheduler stopped")
}
