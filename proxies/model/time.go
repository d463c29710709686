package model

import (
	"time"

	"github.com/rickb777/date/v2/timespan"
)

type TimeSpan = timespan.TimeSpan

// stampWidth is the half-width of the span Now returns.
const stampWidth = time.Millisecond

// Now stamps an engine event: TypeHandle.DefinedAt when a synthesized type
// is first defined, and Invocation.At when a mock records a call. The span
// brackets the current instant so ordering checks tolerate clock jitter.
func Now() TimeSpan {
	now := time.Now()
	return timespan.BetweenTimes(now.Add(-stampWidth), now.Add(stampWidth))
}
