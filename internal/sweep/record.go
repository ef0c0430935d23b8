package sweep

import "time"

// Record is the measurement taken at one sweep step. Amplitude is the
// peak-to-floor difference of the spectrum window in dB.
type Record struct {
	Step       int       `json:"step"`
	CenterFreq float64   `json:"centreFreq"`
	Amplitude  float64   `json:"amplitude"`
	Offset     int       `json:"offset"`
	Max        float64   `json:"max"`
	Min        float64   `json:"min"`
	Timestamp  time.Time `json:"timestamp"`
}
