// Package impact estimates the health and economic value of bringing a
// region's AQI down, and carries the stakeholder KPI matrix that frames it.
package impact

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInputs is returned by Calculate when inputs cannot produce a report.
var ErrInvalidInputs = errors.New("invalid impact inputs")

// Coefficients used by the calculator (WHO / OECD style rough conversions).
const (
	aqiToPM25          = 0.6
	urbanExposureShare = 0.75
	admissionElastic   = 0.15
	sickDaysPerPerson  = 2
	workforceShare     = 0.6
	socialCostPer10ug  = 50.0
	complianceShare    = 0.2
	finePerDay         = 50000.0
)

// Inputs are the calculator parameters.
type Inputs struct {
	Population            float64 `json:"population"`
	BaselineAQI           float64 `json:"baseline_aqi"`
	TargetAQI             float64 `json:"target_aqi"`
	AvgDailyWage          float64 `json:"avg_daily_wage"`
	HospitalAdmissionCost float64 `json:"hospital_admission_cost"`
	BaselineAdmissions    float64 `json:"baseline_admissions"`
	SystemCost            float64 `json:"system_cost"`
}

// DefaultInputs mirrors the reference scenario: a 5M city moving from AQI 180 to 120.
func DefaultInputs() Inputs {
	return Inputs{
		Population:            5_000_000,
		BaselineAQI:           180,
		TargetAQI:             120,
		AvgDailyWage:          150,
		HospitalAdmissionCost: 2500,
		BaselineAdmissions:    1000,
		SystemCost:            1_000_000,
	}
}

// Report is the calculator output. Monetary values are in dollars.
type Report struct {
	PM25Reduction     float64 `json:"pm25_reduction_ugm3"`
	PopulationExposed float64 `json:"population_exposed"`

	AdmissionsAvoided int     `json:"admissions_avoided"`
	HealthcareSavings float64 `json:"healthcare_savings"`

	ProductivityDaysSaved int     `json:"productivity_days_saved"`
	ProductivityValue     float64 `json:"productivity_value"`

	SocialCostPerPerson float64 `json:"social_cost_per_person"`
	TotalSocialValue    float64 `json:"total_social_value"`

	ComplianceDaysGained int     `json:"compliance_days_gained"`
	FinesAvoided         float64 `json:"fines_avoided"`

	TotalBenefits float64 `json:"total_benefits"`
	NetBenefit    float64 `json:"net_benefit"`
	ROI           float64 `json:"roi"`
	PaybackMonths int     `json:"payback_months"`
}

// Validate checks that every input is usable.
func (in Inputs) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"population", in.Population},
		{"baseline_aqi", in.BaselineAQI},
		{"target_aqi", in.TargetAQI},
		{"avg_daily_wage", in.AvgDailyWage},
		{"hospital_admission_cost", in.HospitalAdmissionCost},
		{"baseline_admissions", in.BaselineAdmissions},
		{"system_cost", in.SystemCost},
	} {
		if !finite(f.v) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInputs, f.name)
		}
	}
	switch {
	case in.Population <= 0:
		return fmt.Errorf("%w: population must be positive", ErrInvalidInputs)
	case in.BaselineAQI <= 0:
		return fmt.Errorf("%w: baseline_aqi must be positive", ErrInvalidInputs)
	case in.TargetAQI < 0 || in.TargetAQI > in.BaselineAQI:
		return fmt.Errorf("%w: target_aqi must be between 0 and baseline_aqi", ErrInvalidInputs)
	case in.AvgDailyWage < 0 || in.HospitalAdmissionCost < 0 || in.BaselineAdmissions < 0:
		return fmt.Errorf("%w: costs and admissions must not be negative", ErrInvalidInputs)
	case in.SystemCost <= 0:
		return fmt.Errorf("%w: system_cost must be positive", ErrInvalidInputs)
	}
	return nil
}

// Calculate computes the report for in.
func Calculate(in Inputs) (Report, error) {
	if err := in.Validate(); err != nil {
		return Report{}, err
	}
	var r Report

	r.PM25Reduction = (in.BaselineAQI - in.TargetAQI) * aqiToPM25
	r.PopulationExposed = in.Population * urbanExposureShare
	reductionShare := r.PM25Reduction / in.BaselineAQI

	r.AdmissionsAvoided = int(math.Round(in.BaselineAdmissions * reductionShare * admissionElastic))
	r.HealthcareSavings = float64(r.AdmissionsAvoided) * in.HospitalAdmissionCost

	r.ProductivityDaysSaved = int(math.Round(r.PopulationExposed * workforceShare * sickDaysPerPerson))
	r.ProductivityValue = float64(r.ProductivityDaysSaved) * in.AvgDailyWage

	r.SocialCostPerPerson = r.PM25Reduction / 10 * socialCostPer10ug
	r.TotalSocialValue = r.PopulationExposed * r.SocialCostPerPerson

	r.ComplianceDaysGained = int(math.Round(reductionShare * 365 * complianceShare))
	r.FinesAvoided = float64(r.ComplianceDaysGained) * finePerDay

	r.TotalBenefits = r.HealthcareSavings + r.ProductivityValue + r.TotalSocialValue + r.FinesAvoided
	r.NetBenefit = r.TotalBenefits - in.SystemCost
	r.ROI = math.Round(r.NetBenefit/in.SystemCost*100) / 100
	if !finite(r.TotalBenefits) || !finite(r.ROI) {
		return Report{}, fmt.Errorf("%w: inputs overflow the benefit estimate", ErrInvalidInputs)
	}
	if r.TotalBenefits > 0 {
		r.PaybackMonths = int(math.Round(in.SystemCost / r.TotalBenefits * 12))
	}
	return r, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
