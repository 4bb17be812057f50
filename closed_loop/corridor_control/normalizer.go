package control

// RangeReading is one raw sample together with the calibration offset of the
// sensor that produced it.
type RangeReading struct {
	Sensor SensorID
	Raw    float64
	Offset float64
	Valid  bool
}

// Calibrated subtracts the offset only when the raw value exceeds it. Smaller
// readings are passed through unchanged so a near-zero sample never wraps
// below zero.
func (r RangeReading) Calibrated() float64 {
	if r.Raw > r.Offset {
		return r.Raw - r.Offset
	}
	return r.Raw
}

// Distance is a calibrated value with an explicit flag for "never observed".
type Distance struct {
	MM    float64
	Known bool
}

// Readings holds the latest calibrated distance per sensor.
type Readings [NumSensors]Distance

// SideKnown reports whether all four side sensors have produced a value.
func (r Readings) SideKnown() bool {
	return r[FrontLeft].Known && r[FrontRight].Known && r[BackLeft].Known && r[BackRight].Known
}

// Normalizer turns raw per-sensor samples into calibrated distances. A sensor
// with no sample this cycle keeps its previous value.
type Normalizer struct {
	offsets [NumSensors]float64
	last    Readings
	stale   [NumSensors]int
}

func NewNormalizer(offsets [NumSensors]float64) *Normalizer {
	return &Normalizer{offsets: offsets}
}

// Reading builds the RangeReading for a raw sample of sensor id.
func (n *Normalizer) Reading(id SensorID, raw float64, valid bool) RangeReading {
	return RangeReading{Sensor: id, Raw: raw, Offset: n.offsets[id], Valid: valid && raw >= 0}
}

// Update folds this cycle's readings into the held values and returns them.
func (n *Normalizer) Update(readings [NumSensors]RangeReading) Readings {
	for _, r := range readings {
		if !r.Valid {
			n.stale[r.Sensor]++
			continue
		}
		n.stale[r.Sensor] = 0
		n.last[r.Sensor] = Distance{MM: r.Calibrated(), Known: true}
	}
	return n.last
}

// StaleCycles is the number of consecutive cycles a sensor has reported no
// new sample.
func (n *Normalizer) StaleCycles(id SensorID) int {
	return n.stale[id]
}
