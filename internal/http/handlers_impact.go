package http

import (
	"net/http"

	"github.com/kjstillabower/air-quality-service/internal/impact"
)

// GetImpact handles GET /api/v1/impact. Every input defaults to the reference scenario.
func (h *Handler) GetImpact(w http.ResponseWriter, r *http.Request) {
	in := impact.DefaultInputs()
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"population", &in.Population},
		{"baseline_aqi", &in.BaselineAQI},
		{"target_aqi", &in.TargetAQI},
		{"avg_daily_wage", &in.AvgDailyWage},
		{"hospital_admission_cost", &in.HospitalAdmissionCost},
		{"baseline_admissions", &in.BaselineAdmissions},
		{"system_cost", &in.SystemCost},
	} {
		if err := floatParam(r, p.name, p.dst); err != nil {
			writeParamError(w, r, err)
			return
		}
	}
	report, err := impact.Calculate(in)
	if err != nil {
		writeParamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inputs": in,
		"report": report,
	})
}

// GetStakeholders handles GET /api/v1/stakeholders.
func (h *Handler) GetStakeholders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, impact.StakeholderMatrix())
}
