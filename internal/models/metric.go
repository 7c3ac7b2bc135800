package models

// MetricType is the canonical metric name used in uploads and snapshots.
type MetricType string

const (
	MetricHeartRate              MetricType = "heart_rate"
	MetricRestingHeartRate       MetricType = "resting_heart_rate"
	MetricHRV                    MetricType = "hrv"
	MetricBloodOxygen            MetricType = "blood_oxygen"
	MetricSteps                  MetricType = "steps"
	MetricActiveCalories         MetricType = "active_calories"
	MetricBasalCalories          MetricType = "basal_calories"
	MetricExerciseMinutes        MetricType = "exercise_minutes"
	MetricWeight                 MetricType = "weight"
	MetricVO2Max                 MetricType = "vo2_max"
	MetricRespiratoryRate        MetricType = "respiratory_rate"
	MetricBloodGlucose           MetricType = "blood_glucose"
	MetricBloodPressureSystolic  MetricType = "blood_pressure_systolic"
	MetricBloodPressureDiastolic MetricType = "blood_pressure_diastolic"
	MetricBodyFatPercentage      MetricType = "body_fat_percentage"
	MetricLeanBodyMass           MetricType = "lean_body_mass"
	MetricBoneMineralDensity     MetricType = "bone_mineral_density"
	MetricWalkingHeartRateAvg    MetricType = "walking_heart_rate_avg"
	MetricFlightsClimbed         MetricType = "flights_climbed"
	MetricDistance               MetricType = "distance"
)

// ReductionKind is how a window of samples collapses to one value.
type ReductionKind int

const (
	// Cumulative sums the window (steps, calories, distance).
	Cumulative ReductionKind = iota
	// DiscreteAverage averages discrete readings (heart rate, glucose, pressure).
	DiscreteAverage
	// Latest takes the most recent sample (VO2 max, body composition).
	Latest
)

func (k ReductionKind) String() string {
	switch k {
	case Cumulative:
		return "cumulative"
	case DiscreteAverage:
		return "discrete_average"
	case Latest:
		return "latest"
	default:
		return "unknown"
	}
}

// Canonical units.
const (
	UnitCountPerMinute = "count/min"
	UnitMilliseconds   = "ms"
	UnitPercent        = "%"
	UnitCount          = "count"
	UnitKilocalories   = "kcal"
	UnitMinutes        = "min"
	UnitKilograms      = "kg"
	UnitVO2Max         = "ml/kg*min"
	UnitMgPerDL        = "mg/dL"
	UnitMmHg           = "mmHg"
	UnitGramsPerCm2    = "g/cm^2"
	UnitMeters         = "m"
)

// MetricDef maps a provider identifier to its canonical name, unit and reduction.
type MetricDef struct {
	Type       MetricType
	NativeID   string
	NativeUnit string
	Unit       string
	Kind       ReductionKind
}

// SyncCatalog is the fixed list of metrics the extractor walks, in upload order.
var SyncCatalog = []MetricDef{
	{MetricHeartRate, "HKQuantityTypeIdentifierHeartRate", "count/s", UnitCountPerMinute, DiscreteAverage},
	{MetricRestingHeartRate, "HKQuantityTypeIdentifierRestingHeartRate", UnitCountPerMinute, UnitCountPerMinute, DiscreteAverage},
	{MetricHRV, "HKQuantityTypeIdentifierHeartRateVariabilitySDNN", UnitMilliseconds, UnitMilliseconds, DiscreteAverage},
	{MetricBloodOxygen, "HKQuantityTypeIdentifierOxygenSaturation", "fraction", UnitPercent, DiscreteAverage},
	{MetricSteps, "HKQuantityTypeIdentifierStepCount", UnitCount, UnitCount, Cumulative},
	{MetricActiveCalories, "HKQuantityTypeIdentifierActiveEnergyBurned", UnitKilocalories, UnitKilocalories, Cumulative},
	{MetricBasalCalories, "HKQuantityTypeIdentifierBasalEnergyBurned", UnitKilocalories, UnitKilocalories, Cumulative},
	{MetricExerciseMinutes, "HKQuantityTypeIdentifierAppleExerciseTime", UnitMinutes, UnitMinutes, Cumulative},
	{MetricWeight, "HKQuantityTypeIdentifierBodyMass", UnitKilograms, UnitKilograms, Latest},
	{MetricVO2Max, "HKQuantityTypeIdentifierVO2Max", UnitVO2Max, UnitVO2Max, Latest},
	{MetricRespiratoryRate, "HKQuantityTypeIdentifierRespiratoryRate", UnitCountPerMinute, UnitCountPerMinute, DiscreteAverage},
	{MetricBloodGlucose, "HKQuantityTypeIdentifierBloodGlucose", UnitMgPerDL, UnitMgPerDL, DiscreteAverage},
	{MetricBloodPressureSystolic, "HKQuantityTypeIdentifierBloodPressureSystolic", UnitMmHg, UnitMmHg, DiscreteAverage},
	{MetricBloodPressureDiastolic, "HKQuantityTypeIdentifierBloodPressureDiastolic", UnitMmHg, UnitMmHg, DiscreteAverage},
	{MetricBodyFatPercentage, "HKQuantityTypeIdentifierBodyFatPercentage", "fraction", UnitPercent, Latest},
	{MetricLeanBodyMass, "HKQuantityTypeIdentifierLeanBodyMass", UnitKilograms, UnitKilograms, Latest},
	{MetricBoneMineralDensity, "HKQuantityTypeIdentifierBoneMineralDensity", UnitGramsPerCm2, UnitGramsPerCm2, Latest},
	{MetricWalkingHeartRateAvg, "HKQuantityTypeIdentifierWalkingHeartRateAverage", UnitCountPerMinute, UnitCountPerMinute, DiscreteAverage},
	{MetricFlightsClimbed, "HKQuantityTypeIdentifierFlightsClimbed", UnitCount, UnitCount, Cumulative},
	{MetricDistance, "HKQuantityTypeIdentifierDistanceWalkingRunning", UnitMeters, UnitMeters, Cumulative},
}

// TrackedMetrics are the metrics the daily snapshot reduces.
var TrackedMetrics = []MetricType{
	MetricSteps,
	MetricRestingHeartRate,
	MetricHRV,
	MetricActiveCalories,
	MetricExerciseMinutes,
	MetricBloodOxygen,
	MetricRespiratoryRate,
	MetricVO2Max,
	MetricBloodGlucose,
	MetricBloodPressureSystolic,
	MetricBloodPressureDiastolic,
	MetricBodyFatPercentage,
	MetricLeanBodyMass,
	MetricBoneMineralDensity,
}

var catalogIndex = func() map[MetricType]MetricDef {
	m := make(map[MetricType]MetricDef, len(SyncCatalog))
	for _, d := range SyncCatalog {
		m[d.Type] = d
	}
	return m
}()

// LookupMetric returns the catalog entry for t.
func LookupMetric(t MetricType) (MetricDef, bool) {
	d, ok := catalogIndex[t]
	return d, ok
}

// TrackedDefs resolves TrackedMetrics against the catalog.
func TrackedDefs() []MetricDef {
	defs := make([]MetricDef, 0, len(TrackedMetrics))
	for _, t := range TrackedMetrics {
		if d, ok := catalogIndex[t]; ok {
			defs = append(defs, d)
		}
	}
	return defs
}
