package report

import "math"

// Average days per month used for the monthly estimate
const daysPerMonth = 30.44

// CalculateCosts derives hourly and monthly cost estimates from a spot
// price. A nil price yields nil costs.
func CalculateCosts(spotPrice *float64) Costs {
	if spotPrice == nil {
		return Costs{}
	}

	hourly := roundTo(*spotPrice, 4)
	monthly := roundTo(*spotPrice*24*daysPerMonth, 2)

	return Costs{
		Hourly:  &hourly,
		Monthly: &monthly,
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
