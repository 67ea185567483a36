package port

import (
	"time"

	"sunwarden2mqtt/internal/core/domain"
)

type PowerLimiterLogic interface {
	Tick(input domain.PowerLimiterInput, now time.Time) domain.PowerLimiterTickResult
	Enabled() bool
	SetEnabled(enable bool) bool
	TargetConsumption() float64
	SetTargetConsumption(watts float64)
	State() domain.PowerLimiterState
	DischargeEnabled() bool
	DirectFeedPercent() float64
	LastRequestedLimit() int32
}
