package config

import (
	"strconv"
	"time"
)

// Interval is a scheduler cadence expressed as a raw *_INTERVAL_MS variable.
//
// Historically operators have set these values in both milliseconds and
// seconds, so one normalization rule applies everywhere: a value below 1000 is
// implausibly small as milliseconds and is interpreted as seconds. A zero
// Interval means "unset or unparseable"; callers substitute their per-worker
// default via Or. Keeping the heuristic on this type means it exists exactly
// once instead of per worker.
type Interval time.Duration

// Decode implements envconfig.Decoder. An unparseable or non-positive value
// decodes to zero rather than failing the whole config load; the worker then
// falls back to its default cadence.
func (i *Interval) Decode(value string) error {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms <= 0 {
		*i = 0
		return nil
	}
	if ms < 1000 {
		ms *= 1000
	}
	*i = Interval(time.Duration(ms) * time.Millisecond)
	return nil
}

// Or returns the interval, or fallback when the interval is unset.
func (i Interval) Or(fallback time.Duration) time.Duration {
	if i <= 0 {
		return fallback
	}
	return time.Duration(i)
}
