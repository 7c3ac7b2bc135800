package notify

import (
	"time"

	"wisefido-health-sync/internal/rules"
)

// Alert is a catalog entry: the notification title and how long the same
// alert stays quiet after firing.
type Alert struct {
	ID       string
	Title    string
	Cooldown time.Duration
}

// DefaultCatalog lists the alerts that may interrupt the user. Acute
// conditions get shorter cooldowns than slow-moving ones.
var DefaultCatalog = map[string]Alert{
	rules.AlertTachycardia:    {ID: rules.AlertTachycardia, Title: "Elevated Heart Rate", Cooldown: 6 * time.Hour},
	rules.AlertBradycardia:    {ID: rules.AlertBradycardia, Title: "Low Heart Rate", Cooldown: 6 * time.Hour},
	rules.AlertHRVSevereDrop:  {ID: rules.AlertHRVSevereDrop, Title: "HRV Alert", Cooldown: 12 * time.Hour},
	rules.AlertGlucoseHigh:    {ID: rules.AlertGlucoseHigh, Title: "High Blood Glucose", Cooldown: 4 * time.Hour},
	rules.AlertGlucoseLow:     {ID: rules.AlertGlucoseLow, Title: "Low Blood Glucose", Cooldown: 2 * time.Hour},
	rules.AlertBPHypertensive: {ID: rules.AlertBPHypertensive, Title: "Hypertensive Blood Pressure", Cooldown: 4 * time.Hour},
}
