// Package bhyt computes statutory household health-insurance (BHYT)
// contribution amounts and card validity windows. All money is whole VND.
package bhyt

// HouseholdOrder is the insured person's rank within the household. The rank
// selects the statutory discount tier.
type HouseholdOrder string

const (
	HouseholdOrderFirst   HouseholdOrder = "1"
	HouseholdOrderSecond  HouseholdOrder = "2"
	HouseholdOrderThird   HouseholdOrder = "3"
	HouseholdOrderFourth  HouseholdOrder = "4"
	HouseholdOrderFifthUp HouseholdOrder = "5+"
)

const (
	// DefaultBaseSalaryVND is the statutory reference salary (mức lương cơ sở).
	DefaultBaseSalaryVND int64 = 2_340_000
	// DefaultRateBasisPoints is the BHYT premium rate: 450 bp = 4.5%.
	DefaultRateBasisPoints int64 = 450
)

// Config carries the statutory constants. Pass it explicitly so callers and
// tests can override the reference salary without touching package state.
type Config struct {
	BaseSalaryVND   int64
	RateBasisPoints int64
}

func (c Config) withDefaults() Config {
	if c.BaseSalaryVND <= 0 {
		c.BaseSalaryVND = DefaultBaseSalaryVND
	}
	if c.RateBasisPoints <= 0 {
		c.RateBasisPoints = DefaultRateBasisPoints
	}
	return c
}

type ContributionInput struct {
	HouseholdOrder HouseholdOrder
	MonthsPaid     int
	// BaseSalaryVND overrides Config.BaseSalaryVND when positive.
	BaseSalaryVND int64
}

type ContributionResult struct {
	AmountVND int64
}

// ComputeContribution returns the total premium for MonthsPaid months:
// rate x base salary x household discount x months, rounded half-up once at
// the end. A non-positive MonthsPaid yields zero; an unknown household order
// is charged at the full (first member) tier.
func ComputeContribution(cfg Config, in ContributionInput) ContributionResult {
	if in.MonthsPaid <= 0 {
		return ContributionResult{}
	}

	cfg = cfg.withDefaults()
	base := cfg.BaseSalaryVND
	if in.BaseSalaryVND > 0 {
		base = in.BaseSalaryVND
	}

	n := base * cfg.RateBasisPoints * tierPercent(in.HouseholdOrder) * int64(in.MonthsPaid)
	return ContributionResult{AmountVND: roundDiv(n, 1_000_000)}
}

func tierPercent(order HouseholdOrder) int64 {
	switch order {
	case HouseholdOrderSecond:
		return 70
	case HouseholdOrderThird:
		return 60
	case HouseholdOrderFourth:
		return 50
	case HouseholdOrderFifthUp:
		return 40
	default:
		// Unrecognized orders fall back to the full rate rather than failing.
		return 100
	}
}

func roundDiv(n, denom int64) int64 {
	if n < 0 || denom <= 0 {
		panic("roundDiv expects non-negative numerator and positive denominator")
	}
	q := n / denom
	if n%denom >= denom/2 {
		return q + 1
	}
	return q
}
