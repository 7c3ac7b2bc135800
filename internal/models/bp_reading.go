package models

import "time"

// BPReading is one blood pressure measurement from a device export.
type BPReading struct {
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Pulse      *int      `json:"pulse,omitempty"`
	MeasuredAt time.Time `json:"measured_at"`
	Notes      *string   `json:"notes,omitempty"`
}

// Samples maps the reading to vitals rows: systolic, diastolic and, when
// present, pulse as heart_rate.
func (r BPReading) Samples() []MetricSample {
	out := []MetricSample{
		{
			MetricType: MetricBloodPressureSystolic,
			Value:      float64(r.Systolic),
			Unit:       UnitMmHg,
			RecordedAt: r.MeasuredAt,
			Source:     SourceOmronCSV,
		},
		{
			MetricType: MetricBloodPressureDiastolic,
			Value:      float64(r.Diastolic),
			Unit:       UnitMmHg,
			RecordedAt: r.MeasuredAt,
			Source:     SourceOmronCSV,
		},
	}
	if r.Pulse != nil && *r.Pulse > 0 {
		out = append(out, MetricSample{
			MetricType: MetricHeartRate,
			Value:      float64(*r.Pulse),
			Unit:       UnitCountPerMinute,
			RecordedAt: r.MeasuredAt,
			Source:     SourceOmronCSV,
		})
	}
	return out
}

// ReadingsToSamples flattens readings in order.
func ReadingsToSamples(readings []BPReading) []MetricSample {
	out := make([]MetricSample, 0, len(readings)*3)
	for _, r := range readings {
		out = append(out, r.Samples()...)
	}
	return out
}
