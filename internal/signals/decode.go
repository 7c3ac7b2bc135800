package signals

import (
	"encoding/json"
	"fmt"
	"strings"

	"wisefido-health-sync/internal/models"
)

// CriticalAlert is a server-side alert from the dashboard.
type CriticalAlert struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
	Category string `json:"category,omitempty"`
}

// OverdueScreening is a preventive screening past its due date.
type OverdueScreening struct {
	Name     string `json:"name"`
	LastDate string `json:"last_date,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
	Status   string `json:"status,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Dashboard is the decoded part of the signals response.
type Dashboard struct {
	CriticalAlerts    []CriticalAlert    `json:"critical_alerts"`
	OverdueScreenings []OverdueScreening `json:"overdue_screenings"`
}

// Alias lists per logical field, resolved in order.
var (
	alertTitleKeys    = []string{"title", "type"}
	alertMessageKeys  = []string{"message"}
	alertSeverityKeys = []string{"severity"}
	alertCategoryKeys = []string{"category"}

	screeningNameKeys  = []string{"name", "screening_type"}
	screeningLastKeys  = []string{"lastDate", "last_done"}
	screeningDueKeys   = []string{"dueDate", "next_due"}
	screeningStatusKey = []string{"status"}
	screeningNotesKey  = []string{"notes"}
)

var abbreviations = map[string]bool{
	"hr": true, "hrv": true, "bp": true, "ldl": true, "hdl": true,
	"bmi": true, "trt": true, "alm": true, "dxa": true, "crp": true,
}

// DecodeDashboard decodes a signals response. Sections or entries of the
// wrong shape are skipped instead of failing the whole document.
func DecodeDashboard(data []byte) (*Dashboard, error) {
	var root models.JSONValue
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard: %w", err)
	}
	if root.Kind != models.JSONObject {
		return nil, fmt.Errorf("dashboard response is not an object")
	}

	d := &Dashboard{}
	for _, item := range root.Field("criticalAlerts").Items() {
		if item.Kind != models.JSONObject {
			continue
		}
		d.CriticalAlerts = append(d.CriticalAlerts, CriticalAlert{
			Title:    FormatTitle(stringOr(item, "Alert", alertTitleKeys...)),
			Message:  stringOr(item, "", alertMessageKeys...),
			Severity: stringOr(item, "", alertSeverityKeys...),
			Category: stringOr(item, "", alertCategoryKeys...),
		})
	}
	for _, item := range root.Field("overdueScreenings").Items() {
		if item.Kind != models.JSONObject {
			continue
		}
		d.OverdueScreenings = append(d.OverdueScreenings, OverdueScreening{
			Name:     stringOr(item, "Unknown", screeningNameKeys...),
			LastDate: stringOr(item, "", screeningLastKeys...),
			DueDate:  stringOr(item, "", screeningDueKeys...),
			Status:   stringOr(item, "", screeningStatusKey...),
			Notes:    stringOr(item, "", screeningNotesKey...),
		})
	}
	return d, nil
}

// stringOr returns the first alias holding a string, else def.
func stringOr(v models.JSONValue, def string, aliases ...string) string {
	for _, k := range aliases {
		if f := v.Field(k); f.Kind == models.JSONString {
			return f.String
		}
	}
	return def
}

// FormatTitle turns snake_case identifiers into Title Case, keeping clinical
// abbreviations upper-case. Titles that already contain a space are kept.
func FormatTitle(raw string) string {
	if strings.Contains(raw, " ") {
		return raw
	}

	words := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	for i, w := range words {
		lower := strings.ToLower(w)
		if abbreviations[lower] {
			words[i] = strings.ToUpper(lower)
			continue
		}
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// SeverityLevel maps the server's labels onto insight severities.
func (a CriticalAlert) SeverityLevel() models.Severity {
	switch strings.ToLower(a.Severity) {
	case "critical", "high":
		return models.SeverityCritical
	case "warning", "medium":
		return models.SeverityWarning
	default:
		return models.SeverityAttention
	}
}

func (a CriticalAlert) Color() string {
	switch a.SeverityLevel() {
	case models.SeverityCritical:
		return "red"
	case models.SeverityWarning:
		return "orange"
	default:
		return "yellow"
	}
}

// Insight renders the alert for merging with locally derived insights.
func (a CriticalAlert) Insight() models.Insight {
	return models.Insight{
		ID:       "remote-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(a.Title)), " ", "-"),
		Icon:     "exclamationmark.triangle.fill",
		Color:    a.Color(),
		Severity: a.SeverityLevel(),
		Title:    a.Title,
		Message:  a.Message,
		Source:   "remote",
	}
}
