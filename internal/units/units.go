package units

import (
	"errors"
	"fmt"
	"strings"

	"wisefido-health-sync/internal/models"
)

// ErrUnsupportedConversion is returned for unit pairs with no known factor.
var ErrUnsupportedConversion = errors.New("unsupported unit conversion")

// mmol/L to mg/dL for glucose.
const glucoseMmolToMg = 18.0182

type pair struct{ from, to string }

var factors = map[pair]float64{
	{"fraction", models.UnitPercent}:       100,
	{"percent", models.UnitPercent}:        1,
	{"count/s", models.UnitCountPerMinute}: 60,
	{"bpm", models.UnitCountPerMinute}:     1,
	{"s", models.UnitMinutes}:              1.0 / 60,
	{"h", models.UnitMinutes}:              60,
	{"s", models.UnitMilliseconds}:         1000,
	{"kJ", models.UnitKilocalories}:        1 / 4.184,
	{"Cal", models.UnitKilocalories}:       1,
	{"lb", models.UnitKilograms}:           0.45359237,
	{"g", models.UnitKilograms}:            0.001,
	{"km", models.UnitMeters}:              1000,
	{"mi", models.UnitMeters}:              1609.344,
	{"mmol/L", models.UnitMgPerDL}:         glucoseMmolToMg,
	{"kPa", models.UnitMmHg}:               7.50062,
	{"mL/(kg*min)", models.UnitVO2Max}:     1,
	{"g/cm²", models.UnitGramsPerCm2}:      1,
}

// aliases normalize spellings the provider may report for canonical units.
var aliases = map[string]string{
	"%":         models.UnitPercent,
	"ms":        models.UnitMilliseconds,
	"count":     models.UnitCount,
	"kcal":      models.UnitKilocalories,
	"min":       models.UnitMinutes,
	"kg":        models.UnitKilograms,
	"mg/dl":     models.UnitMgPerDL,
	"mmhg":      models.UnitMmHg,
	"m":         models.UnitMeters,
	"ml/kg*min": models.UnitVO2Max,
	"g/cm^2":    models.UnitGramsPerCm2,
	"count/min": models.UnitCountPerMinute,
}

func normalize(u string) string {
	u = strings.TrimSpace(u)
	if canon, ok := aliases[strings.ToLower(u)]; ok {
		return canon
	}
	return u
}

// Convert maps value from unit from to unit to.
func Convert(value float64, from, to string) (float64, error) {
	f, t := normalize(from), normalize(to)
	if f == t || f == "" {
		return value, nil
	}
	factor, ok := factors[pair{f, t}]
	if !ok {
		return 0, fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, from, to)
	}
	return value * factor, nil
}

// ToCanonical converts value from unit into def's canonical unit.
func ToCanonical(def models.MetricDef, value float64, unit string) (float64, error) {
	if unit == "" {
		unit = def.NativeUnit
	}
	return Convert(value, unit, def.Unit)
}
