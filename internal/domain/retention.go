package domain

import (
	"fmt"
	"strings"
	"time"
)

// RetentionPeriod is the maximum age of a transaction before it becomes
// eligible for deletion.
type RetentionPeriod string

const (
	RetentionNever   RetentionPeriod = "never"
	RetentionOneHour RetentionPeriod = "1h"
	RetentionOneDay  RetentionPeriod = "1d"
	RetentionOneWeek RetentionPeriod = "1w"
)

// ParseRetentionPeriod accepts the canonical values plus a few aliases.
func ParseRetentionPeriod(s string) (RetentionPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never", "forever", "":
		return RetentionNever, nil
	case "1h", "hour", "one_hour":
		return RetentionOneHour, nil
	case "1d", "day", "one_day", "24h":
		return RetentionOneDay, nil
	case "1w", "week", "one_week", "168h":
		return RetentionOneWeek, nil
	}
	return "", fmt.Errorf("unknown retention period %q", s)
}

// Horizon returns the age limit, zero for RetentionNever.
func (p RetentionPeriod) Horizon() time.Duration {
	switch p {
	case RetentionOneHour:
		return time.Hour
	case RetentionOneDay:
		return 24 * time.Hour
	case RetentionOneWeek:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Cooldowns is the minimum time between purge attempts. The values are
// independent of the horizon.
type Cooldowns struct {
	Hourly  time.Duration `mapstructure:"cooldown_hourly" yaml:"cooldown_hourly"`
	Default time.Duration `mapstructure:"cooldown_default" yaml:"cooldown_default"`
}

func DefaultCooldowns() Cooldowns {
	return Cooldowns{Hourly: 30 * time.Minute, Default: 2 * time.Hour}
}

func (c Cooldowns) For(p RetentionPeriod) time.Duration {
	if p == RetentionOneHour {
		return c.Hourly
	}
	return c.Default
}
