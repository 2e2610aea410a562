package render

import "math"

const (
	defaultMinPower = -120.0 // dB
	defaultMaxPower = -20.0  // dB

	minimumSampleCount = 20
	minimumSpanDB      = 30
)

// PowerBounds is the dB range mapped onto the color table.
type PowerBounds struct {
	Min float64
	Max float64
}

// DefaultPowerBounds covers the dynamic range of a typical consumer SDR
// front end.
func DefaultPowerBounds() PowerBounds {
	return PowerBounds{Min: defaultMinPower, Max: defaultMaxPower}
}

// ComputeBounds derives display bounds from the data itself: the 5th and
// 95th percentile of all readings, widened to a minimum span of 30 dB plus
// a 10% margin. Percentiles rather than extremes keep one hot carrier or
// dropout from washing out the rest of the image. With too few readings
// the defaults are returned.
func ComputeBounds(rows []Row) PowerBounds {
	// 1 dB histogram bins
	bins := make(map[int]uint32)
	minBin, maxBin := math.MaxInt32, math.MinInt32
	var total uint64

	for _, row := range rows {
		for _, p := range row.Power {
			bin := int(math.Floor(p))
			bins[bin]++
			total++
			if bin < minBin {
				minBin = bin
			}
			if bin > maxBin {
				maxBin = bin
			}
		}
	}

	if total < minimumSampleCount {
		return DefaultPowerBounds()
	}

	target := total * 5 / 100

	var count uint64
	min5th := minBin
	for bin := minBin; bin <= maxBin; bin++ {
		count += uint64(bins[bin])
		if count >= target {
			min5th = bin
			break
		}
	}

	count = 0
	max95th := maxBin
	for bin := maxBin; bin >= minBin; bin-- {
		count += uint64(bins[bin])
		if count >= target {
			max95th = bin
			break
		}
	}

	if max95th-min5th < minimumSpanDB {
		center := (max95th + min5th) / 2
		min5th = center - minimumSpanDB/2
		max95th = center + minimumSpanDB/2
	}

	margin := (max95th - min5th) / 10
	return PowerBounds{
		Min: float64(min5th - margin),
		Max: float64(max95th + margin),
	}
}
