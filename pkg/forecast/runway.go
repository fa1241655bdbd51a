package forecast

import "github.com/shopspring/decimal"

// RunwaySentinelMonths marks a runway as effectively unbounded: revenue covers
// burn, or the runway is longer than the sentinel itself. It is not a month count.
const RunwaySentinelMonths = 99.0

var (
	hundred         = decimal.NewFromInt(100)
	two             = decimal.NewFromInt(2)
	sentinelMonths  = decimal.NewFromFloat(RunwaySentinelMonths)
	runwayPrecision = int32(2)
)

// CalculateRunwayScenarios estimates months of cash left under three revenue assumptions:
// base keeps revenue flat, optimistic grows it by growthRatePercent, and pessimistic
// shrinks it by half that rate. Negative growth is treated as zero so that
// optimistic ≥ base ≥ pessimistic always holds. No cash means no runway in every scenario.
func CalculateRunwayScenarios(cash, monthlyBurn, monthlyRevenue, growthRatePercent float64) RunwayScenarios {
	if cash <= 0 {
		return RunwayScenarios{}
	}

	cashD := decimal.NewFromFloat(cash)
	burnD := decimal.NewFromFloat(monthlyBurn)
	revenueD := decimal.NewFromFloat(monthlyRevenue)
	if monthlyBurn-monthlyRevenue <= 0 {
		return RunwayScenarios{
			Optimistic:  RunwaySentinelMonths,
			Base:        RunwaySentinelMonths,
			Pessimistic: RunwaySentinelMonths,
		}
	}

	growth := decimal.NewFromFloat(growthRatePercent)
	if growth.IsNegative() {
		growth = decimal.Zero
	}
	growth = growth.Div(hundred)

	optimisticRevenue := revenueD.Mul(decimal.NewFromInt(1).Add(growth))
	pessimisticRevenue := revenueD.Mul(decimal.NewFromInt(1).Sub(growth.Div(two)))
	if pessimisticRevenue.IsNegative() {
		pessimisticRevenue = decimal.Zero
	}

	return RunwayScenarios{
		Optimistic:  monthsOfRunway(cashD, burnD.Sub(optimisticRevenue)),
		Base:        monthsOfRunway(cashD, burnD.Sub(revenueD)),
		Pessimistic: monthsOfRunway(cashD, burnD.Sub(pessimisticRevenue)),
	}
}

func monthsOfRunway(cash, netBurn decimal.Decimal) float64 {
	if !netBurn.IsPositive() {
		return RunwaySentinelMonths
	}
	months := cash.DivRound(netBurn, runwayPrecision)
	if months.GreaterThan(sentinelMonths) {
		return RunwaySentinelMonths
	}
	return months.InexactFloat64()
}
