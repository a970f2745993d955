package thread

import "time"

// Policy configures paging and retry for one kind of list.
type Policy struct {
	PageSize    int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRootPolicy is used for the root list when no policy is configured.
func DefaultRootPolicy() Policy {
	return Policy{
		PageSize:    20,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 4,
	}
}

// DefaultReplyPolicy is used for reply lists when no policy is configured.
func DefaultReplyPolicy() Policy {
	return Policy{
		PageSize:    10,
		BaseDelay:   300 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    4 * time.Second,
		MaxAttempts: 3,
	}
}

func (p Policy) withDefaults(def Policy) Policy {
	if p.PageSize <= 0 {
		p.PageSize = def.PageSize
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

// Delay returns the backoff before retry number attempt (1-based):
// BaseDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
