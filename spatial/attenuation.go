package spatial

import "math"

// AttenuationDB returns the distance attenuation in dB of a source distance
// cm away: distance is capped at maxDistance and converted to meters, then
// multiplied by dbPerMeter.
func AttenuationDB(distance, maxDistance, dbPerMeter float64) float64 {
	if distance < 0 {
		distance = 0
	}
	if maxDistance >= 0 && distance > maxDistance {
		distance = maxDistance
	}
	return distance / 100 * dbPerMeter
}

// AttenuationGain converts AttenuationDB into a linear amplitude factor.
func AttenuationGain(distance, maxDistance, dbPerMeter float64) float64 {
	return math.Pow(10, -AttenuationDB(distance, maxDistance, dbPerMeter)/20)
}
