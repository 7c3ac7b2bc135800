package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"wisefido-health-sync/internal/models"
)

// Alert ids. They are also the insight ids.
const (
	AlertTachycardia    = "hr-tachycardia"
	AlertBradycardia    = "hr-bradycardia"
	AlertHRVSevereDrop  = "hrv-severe-drop"
	AlertHRVBelowBase   = "hrv-below-baseline"
	AlertHRVRecovery    = "hrv-recovery"
	AlertGlucoseHigh    = "glucose-high"
	AlertGlucoseLow     = "glucose-low"
	AlertBPHypertensive = "bp-hypertensive"
	AlertAllClear       = "all-clear"
)

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Thresholds. Comparisons are strict.
const (
	RestingHRHigh    = 100.0
	RestingHRLow     = 40.0
	HRVSevereDropPct = 30.0
	HRVDropPct       = 15.0
	HRVRecoveryPct   = -10.0
	GlucoseHigh      = 200.0
	GlucoseLow       = 60.0
	SystolicHigh     = 160.0
	DiastolicHigh    = 100.0
)

// Evaluate derives insights from a snapshot. It never returns an empty list;
// when nothing fires the result is a single all-clear info insight. The
// result is sorted by descending severity, ties keep evaluation order.
func Evaluate(s *models.DailyHealthSnapshot) []models.Insight {
	var out []models.Insight

	rhr := s.Today(models.MetricRestingHeartRate)
	switch {
	case rhr > RestingHRHigh:
		out = append(out, local(AlertTachycardia, "heart.fill", "red", models.SeverityCritical,
			"Elevated Resting Heart Rate",
			fmt.Sprintf("Resting HR is %d bpm. Sustained above 100 may indicate tachycardia. Monitor closely.", trunc(rhr))))
	case rhr > 0 && rhr < RestingHRLow:
		out = append(out, local(AlertBradycardia, "heart.fill", "red", models.SeverityCritical,
			"Low Resting Heart Rate",
			fmt.Sprintf("Resting HR is %d bpm. Below 40 may indicate bradycardia.", trunc(rhr))))
	}

	hrv := s.Today(models.MetricHRV)
	base := s.Average(models.MetricHRV)
	if hrv > 0 && base > 0 {
		drop := DropPercent(base, hrv)
		switch {
		case drop > HRVSevereDropPct:
			out = append(out, local(AlertHRVSevereDrop, "waveform.path.ecg", "red", models.SeverityWarning,
				"Significant HRV Drop",
				fmt.Sprintf("HRV is %d%% below your baseline (%d vs avg %d ms). Your autonomic nervous system is stressed.",
					trunc(drop), trunc(hrv), trunc(base))))
		case drop > HRVDropPct:
			out = append(out, local(AlertHRVBelowBase, "waveform.path.ecg", "orange", models.SeverityAttention,
				"HRV Below Baseline",
				fmt.Sprintf("HRV is %d%% below average. Consider lighter activity today.", trunc(drop))))
		case drop < HRVRecoveryPct:
			out = append(out, local(AlertHRVRecovery, "arrow.up.heart.fill", "green", models.SeverityInfo,
				"Strong Recovery",
				fmt.Sprintf("HRV is %d%% above your %d-day average. Your body is well recovered.",
					trunc(math.Abs(drop)), windowDays(s))))
		}
	}

	glucose := s.Today(models.MetricBloodGlucose)
	switch {
	case glucose > GlucoseHigh:
		out = append(out, local(AlertGlucoseHigh, "drop.fill", "red", models.SeverityCritical,
			"High Blood Glucose",
			fmt.Sprintf("Glucose reading of %d mg/dL is significantly elevated. Monitor for sustained highs.", trunc(glucose))))
	case glucose > 0 && glucose < GlucoseLow:
		out = append(out, local(AlertGlucoseLow, "drop.fill", "red", models.SeverityCritical,
			"Low Blood Glucose",
			fmt.Sprintf("Glucose at %d mg/dL is in the hypoglycemic range. Consider eating something.", trunc(glucose))))
	}

	sys := s.Today(models.MetricBloodPressureSystolic)
	dia := s.Today(models.MetricBloodPressureDiastolic)
	if sys > SystolicHigh || dia > DiastolicHigh {
		out = append(out, local(AlertBPHypertensive, "heart.circle.fill", "red", models.SeverityCritical,
			"High Blood Pressure",
			fmt.Sprintf("BP at %d/%d mmHg is in hypertensive range.", trunc(sys), trunc(dia))))
	}

	if len(out) == 0 {
		out = append(out, AllClear())
	}

	SortBySeverity(out)
	return out
}

// AllClear is the insight emitted when no rule fires.
func AllClear() models.Insight {
	return local(AlertAllClear, "checkmark.seal.fill", "green", models.SeverityInfo,
		"All Clear", "Your vitals are within normal ranges today. Keep it up.")
}

// DropPercent is how far today sits below baseline, in percent of baseline.
// Negative when today is above baseline.
func DropPercent(baseline, today float64) float64 {
	return (baseline - today) / baseline * 100
}

// SortBySeverity orders insights most urgent first, keeping the relative
// order of equal severities.
func SortBySeverity(in []models.Insight) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Severity > in[j].Severity
	})
}

// DedupByTitle drops insights whose trimmed, case-folded title was already
// seen. The first occurrence wins.
func DedupByTitle(in []models.Insight) []models.Insight {
	seen := make(map[string]bool, len(in))
	out := make([]models.Insight, 0, len(in))
	for _, it := range in {
		key := strings.ToLower(strings.TrimSpace(it.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// Merge folds remote alerts into local insights. Local insights win title
// collisions. The all-clear insight is dropped once any remote alert is
// present.
func Merge(localInsights, remote []models.Insight) []models.Insight {
	if len(remote) == 0 {
		return localInsights
	}

	merged := make([]models.Insight, 0, len(localInsights)+len(remote))
	for _, it := range localInsights {
		if it.ID == AlertAllClear {
			continue
		}
		merged = append(merged, it)
	}
	merged = append(merged, remote...)

	merged = DedupByTitle(merged)
	SortBySeverity(merged)
	return merged
}

func local(id, icon, color string, sev models.Severity, title, msg string) models.Insight {
	return models.Insight{
		ID:       id,
		Icon:     icon,
		Color:    color,
		Severity: sev,
		Title:    title,
		Message:  msg,
		Source:   SourceLocal,
	}
}

func trunc(v float64) int {
	return int(v)
}

func windowDays(s *models.DailyHealthSnapshot) int {
	if s == nil || s.WindowDays <= 0 {
		return 7
	}
	return s.WindowDays
}
