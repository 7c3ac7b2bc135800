package provider

import (
	"time"

	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/units"
)

// unitGroup holds the reduction inputs for the samples of one stored unit.
type unitGroup struct {
	Unit   string
	Sum    float64
	Count  int
	Last   float64
	LastAt time.Time
}

func (g *unitGroup) add(s Sample) {
	g.Sum += s.Value
	g.Count++
	if g.Count == 1 || s.Start.After(g.LastAt) {
		g.Last = s.Value
		g.LastAt = s.Start
	}
}

// groupByUnit splits samples by their stored unit, keeping first-seen order.
func groupByUnit(samples []Sample) []unitGroup {
	idx := make(map[string]int)
	var out []unitGroup
	for _, s := range samples {
		i, ok := idx[s.Unit]
		if !ok {
			i = len(out)
			idx[s.Unit] = i
			out = append(out, unitGroup{Unit: s.Unit})
		}
		out[i].add(s)
	}
	return out
}

// combine converts every group into def's canonical unit and reduces them
// with def.Kind. Conversions are linear, so sums and counts combine exactly.
// Groups in an unknown unit are left out. ok is false when nothing is left.
func combine(def models.MetricDef, groups []unitGroup) (value float64, ok bool) {
	var (
		sum    float64
		count  int
		last   float64
		lastAt time.Time
	)
	for _, g := range groups {
		if g.Count == 0 {
			continue
		}
		gs, err := units.ToCanonical(def, g.Sum, g.Unit)
		if err != nil {
			continue
		}
		gl, _ := units.ToCanonical(def, g.Last, g.Unit)

		sum += gs
		if count == 0 || g.LastAt.After(lastAt) {
			last, lastAt = gl, g.LastAt
		}
		count += g.Count
	}
	if count == 0 {
		return 0, false
	}

	switch def.Kind {
	case models.Latest:
		return last, true
	case models.DiscreteAverage:
		return sum / float64(count), true
	default:
		return sum, true
	}
}
