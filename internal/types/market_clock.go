package types

import (
	"time"

	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

const (
	regularOpenSecond  = 9*3600 + 30*60
	regularCloseSecond = 16 * 3600
)

// MarketClock converts true UTC bar timestamps into the exchange-local
// frame used by downstream consumers. Stored epochs are offset-shifted:
// the exchange zone's UTC offset at the bar's instant is added to the
// true UTC epoch second, so reading the result as if it were UTC yields
// exchange-local wall time.
type MarketClock struct {
	location *time.Location
}

// NewMarketClock loads the exchange timezone by IANA name,
// e.g. "America/New_York".
func NewMarketClock(timezone string) (*MarketClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidTimezone, err, "cannot load timezone %s", timezone)
	}
	return &MarketClock{location: loc}, nil
}

// Location returns the exchange timezone.
func (c *MarketClock) Location() *time.Location {
	return c.location
}

// LocalEpoch returns the offset-shifted epoch second for t. The shift is
// computed per instant, so bars on either side of a DST transition each
// carry the offset in force at their own time.
func (c *MarketClock) LocalEpoch(t time.Time) int64 {
	_, offset := t.In(c.location).Zone()
	return t.Unix() + int64(offset)
}

// SessionDate returns the exchange-local trading date of t as YYYY-MM-DD.
func (c *MarketClock) SessionDate(t time.Time) string {
	return t.In(c.location).Format("2006-01-02")
}

// InRegularHours reports whether t falls inside the regular trading
// session [09:30, 16:00) exchange-local. The open second 09:30:00 is
// inside, the close second 16:00:00 is outside.
func (c *MarketClock) InRegularHours(t time.Time) bool {
	local := t.In(c.location)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return sec >= regularOpenSecond && sec < regularCloseSecond
}

// EpochInRegularHours reports whether an already offset-shifted epoch
// second falls inside [09:30, 16:00). Used when only the stored local
// epoch is at hand, after the true instant has been discarded.
func EpochInRegularHours(localEpoch int64) bool {
	sec := localEpoch % 86400
	return sec >= regularOpenSecond && sec < regularCloseSecond
}

// BeforeOpen reports whether t is earlier than the 09:30 session open.
func (c *MarketClock) BeforeOpen(t time.Time) bool {
	local := t.In(c.location)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return sec < regularOpenSecond
}

// AfterClose reports whether t is at or past the 16:00 session close.
func (c *MarketClock) AfterClose(t time.Time) bool {
	local := t.In(c.location)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return sec >= regularCloseSecond
}
