package analytics

import (
	"fmt"
	"time"
)

// Tier is a loyalty classification by total visits.
type Tier string

const (
	TierNew      Tier = "NEW"
	TierRegular  Tier = "REGULAR"
	TierVIP      Tier = "VIP"
	TierPlatinum Tier = "PLATINUM"
)

// Tiers lists every tier from lowest to highest.
func Tiers() []Tier {
	return []Tier{TierNew, TierRegular, TierVIP, TierPlatinum}
}

// LoyaltyPolicy holds the visit cut points and the inactivity window.
// A patient with at least Regular visits is REGULAR, and so on upward.
type LoyaltyPolicy struct {
	Regular          int
	VIP              int
	Platinum         int
	InactivityWindow time.Duration
}

// DefaultLoyaltyPolicy is 3/6/12 visits with a 180-day inactivity window.
func DefaultLoyaltyPolicy() LoyaltyPolicy {
	return LoyaltyPolicy{Regular: 3, VIP: 6, Platinum: 12, InactivityWindow: 180 * 24 * time.Hour}
}

// Validate enforces 1 <= Regular <= VIP <= Platinum and a positive window.
func (p LoyaltyPolicy) Validate() error {
	if p.Regular < 1 || p.VIP < p.Regular || p.Platinum < p.VIP {
		return fmt.Errorf("analytics: loyalty thresholds must satisfy 1 <= regular <= vip <= platinum (got %d/%d/%d)",
			p.Regular, p.VIP, p.Platinum)
	}
	if p.InactivityWindow <= 0 {
		return fmt.Errorf("analytics: inactivity window must be positive")
	}
	return nil
}

// Tier maps a visit count onto a tier. It is monotonic in visits.
func (p LoyaltyPolicy) Tier(visits int) Tier {
	switch {
	case visits >= p.Platinum:
		return TierPlatinum
	case visits >= p.VIP:
		return TierVIP
	case visits >= p.Regular:
		return TierRegular
	default:
		return TierNew
	}
}
