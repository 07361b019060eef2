package indicator

// Multiplier returns the EMA smoothing factor 2/(period+1).
func Multiplier(period int) float64 {
	return 2.0 / float64(period+1)
}

// emaStep advances an EMA by one observation.
func emaStep(prev, value float64, period int) float64 {
	m := Multiplier(period)
	return (1-m)*prev + m*value
}

// seedAverage averages prior followed by current, summed in series order.
func seedAverage(prior []float64, current float64) float64 {
	sum := 0.0
	for _, v := range prior {
		sum += v
	}
	sum += current
	return sum / float64(len(prior)+1)
}
