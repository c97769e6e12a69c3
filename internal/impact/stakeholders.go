package impact

// KPI is one measurable outcome a stakeholder tracks.
type KPI struct {
	Metric string `json:"metric"`
	Target string `json:"target"`
	Impact string `json:"impact"` // High, Medium, Low
}

// Stakeholder is a decision maker acting on air-quality alerts.
type Stakeholder struct {
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	DecisionTrigger string   `json:"decision_trigger"`
	Interventions   []string `json:"interventions"`
	KPIs            []KPI    `json:"kpis"`
}

// SummaryStat is a headline figure shown above the matrix.
type SummaryStat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Matrix is the stakeholder-KPI mapping.
type Matrix struct {
	Summary      []SummaryStat `json:"summary"`
	Stakeholders []Stakeholder `json:"stakeholders"`
}

// CountKPIs returns the number of KPIs across all stakeholders.
func (m Matrix) CountKPIs() int {
	n := 0
	for _, s := range m.Stakeholders {
		n += len(s.KPIs)
	}
	return n
}

// ByImpact returns how many KPIs carry each impact level.
func (m Matrix) ByImpact() map[string]int {
	out := make(map[string]int)
	for _, s := range m.Stakeholders {
		for _, k := range s.KPIs {
			out[k.Impact]++
		}
	}
	return out
}

// StakeholderMatrix returns the built-in stakeholder-KPI matrix.
func StakeholderMatrix() Matrix {
	stakeholders := []Stakeholder{
		{
			Name:            "Air Quality Regulatory Boards",
			Role:            "Ensure compliance & protect public health",
			DecisionTrigger: "AQI >100 or trending upward",
			Interventions: []string{
				"Issue public health advisories",
				"Enforce industrial emission restrictions",
				"Activate emergency response protocols",
				"Coordinate multi-agency response",
			},
			KPIs: []KPI{
				{"Compliance Days", "+20-30 days/year", "High"},
				{"PM2.5 Reduction", "8-12% seasonal", "High"},
				{"Public Awareness Reach", "70%+ population", "Medium"},
				{"Enforcement Actions", "-25% violations", "High"},
			},
		},
		{
			Name:            "Healthcare Systems & Hospitals",
			Role:            "Optimize resources & minimize preventable admissions",
			DecisionTrigger: "AQI >150 forecast (48-72hr)",
			Interventions: []string{
				"Pre-deploy respiratory specialists",
				"Stock emergency medications & oxygen",
				"Activate surge capacity protocols",
				"Coordinate ambulance services",
			},
			KPIs: []KPI{
				{"Admissions Avoided", "10-15% reduction", "High"},
				{"Healthcare Cost Savings", "$1.5-3M annually", "High"},
				{"ER Wait Time", "-30% during alerts", "Medium"},
				{"Staff Overtime", "-20-25%", "Medium"},
			},
		},
		{
			Name:            "Traffic Management Authorities",
			Role:            "Reduce vehicular emissions during pollution episodes",
			DecisionTrigger: "AQI >180 or rapid deterioration",
			Interventions: []string{
				"Implement odd-even vehicle schemes",
				"Restrict heavy diesel vehicles",
				"Enhance public transit capacity",
				"Optimize traffic flow with AI routing",
			},
			KPIs: []KPI{
				{"PM2.5 Reduction", "10-18% within 48hrs", "High"},
				{"Traffic Volume Decrease", "30-40%", "High"},
				{"Public Compliance Rate", "75%+ voluntary", "Medium"},
				{"Commute Time Savings", "15-20 min avg", "Low"},
			},
		},
		{
			Name:            "Educational Institutions",
			Role:            "Protect vulnerable children & maintain learning",
			DecisionTrigger: "AQI >150 during school hours",
			Interventions: []string{
				"Cancel/move outdoor activities indoors",
				"Distribute masks to students",
				"Activate hybrid learning options",
				"Communicate with parents via app",
			},
			KPIs: []KPI{
				{"Student Days Preserved", "25K-40K days", "High"},
				{"Attendance Rate", "Maintained at 95%+", "Medium"},
				{"Health Incidents", "-40-50%", "High"},
				{"Parental Satisfaction", "85%+ approval", "Medium"},
			},
		},
		{
			Name:            "Industrial Operations",
			Role:            "Maintain production while meeting regulations",
			DecisionTrigger: "AQI >200 or enforcement window",
			Interventions: []string{
				"Schedule planned maintenance shutdowns",
				"Adjust production schedules",
				"Implement temporary emission controls",
				"Coordinate across supply chain",
			},
			KPIs: []KPI{
				{"Fines Avoided", "$800K-2M annually", "High"},
				{"Compliance Rate", "95%+ clean days", "High"},
				{"Operational Efficiency", "+15% planned vs emergency", "Medium"},
				{"Reputation Score", "Maintained/improved", "Low"},
			},
		},
		{
			Name:            "General Public & Workforce",
			Role:            "Protect health & maintain productivity",
			DecisionTrigger: "Personalized alerts via app",
			Interventions: []string{
				"Modify outdoor activity patterns",
				"Use protective masks when needed",
				"Work from home options",
				"Adjust commute timing",
			},
			KPIs: []KPI{
				{"Sick Days Avoided", "1-2 days/person/year", "High"},
				{"Productivity Value", "$200-400/person", "High"},
				{"Health Behavior Change", "60%+ adoption", "Medium"},
				{"App Engagement", "70%+ active users", "Low"},
			},
		},
	}
	return Matrix{
		Summary: []SummaryStat{
			{"Key Stakeholders", "6"},
			{"Measurable KPIs", "24"},
			{"Alert Lead Time", "48-72hr"},
			{"Average ROI", "12:1"},
		},
		Stakeholders: stakeholders,
	}
}
