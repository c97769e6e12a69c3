package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/air-quality-service/internal/validation"
)

const (
	defaultPollutant = "PM2.5"
	defaultHorizon   = "24h"
	defaultWindow    = "48h"
	maxHorizonHours  = 168
	maxWindowHours   = 720
	defaultVizHours  = 24
	maxVizHours      = 168
	defaultPageLimit = 50
	maxPageLimit     = 500
	maxRegionLength  = 64
)

// paramError names the query parameter that failed to parse.
type paramError struct {
	param string
	err   error
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.param, e.err)
}

func (e *paramError) Unwrap() error { return e.err }

func query(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// pollutantParam returns the canonical pollutant, defaulting to PM2.5.
func pollutantParam(r *http.Request) (string, error) {
	v := query(r, "pollutant")
	if v == "" {
		return defaultPollutant, nil
	}
	p, err := validation.CanonicalPollutant(v)
	if err != nil {
		return "", &paramError{"pollutant", err}
	}
	return p, nil
}

// stationParam returns the station_id query parameter. Empty means the default station.
func stationParam(r *http.Request) (string, error) {
	v := query(r, "station_id")
	if v == "" {
		return "", nil
	}
	id, err := validation.ValidateStationID(v)
	if err != nil {
		return "", &paramError{"station_id", err}
	}
	return id, nil
}

// regionParam returns the region query parameter. Empty means no filter.
func regionParam(r *http.Request) (string, error) {
	v := query(r, "region")
	if v == "" {
		return "", nil
	}
	region, err := validation.ValidateRegion(v, maxRegionLength)
	if err != nil {
		return "", &paramError{"region", err}
	}
	return region, nil
}

// durationParam parses an Nh/Nd parameter into hours within [1, maxHours].
func durationParam(r *http.Request, name, def string, maxHours int) (int, string, error) {
	v := query(r, name)
	if v == "" {
		v = def
	}
	hours, err := validation.ParseHours(v, 1, maxHours)
	if err != nil {
		return 0, "", &paramError{name, err}
	}
	return hours, v, nil
}

// vizHoursParam parses the chart window: a bare hour count or Nh/Nd, 1-168, default 24.
func vizHoursParam(r *http.Request) (int, error) {
	v := query(r, "hours")
	if v == "" {
		return defaultVizHours, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		hours, err := validation.CheckHours(n, 1, maxVizHours)
		if err != nil {
			return 0, &paramError{"hours", err}
		}
		return hours, nil
	}
	hours, err := validation.ParseHours(v, 1, maxVizHours)
	if err != nil {
		return 0, &paramError{"hours", err}
	}
	return hours, nil
}

// sinceParam parses an RFC3339 timestamp. Zero means no lower bound.
func sinceParam(r *http.Request) (time.Time, error) {
	v := query(r, "since")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &paramError{"since", fmt.Errorf("want RFC3339, got %q", v)}
	}
	return t, nil
}

// pageParams returns limit (default 50, at most 500) and offset (default 0).
func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageLimit, 0
	if v := query(r, "limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return 0, 0, &paramError{"limit", fmt.Errorf("want a non-negative integer, got %q", v)}
		}
		limit = min(n, maxPageLimit)
	}
	if v := query(r, "offset"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return 0, 0, &paramError{"offset", fmt.Errorf("want a non-negative integer, got %q", v)}
		}
		offset = n
	}
	return limit, offset, nil
}

// floatParam overrides *dst when the parameter is present.
func floatParam(r *http.Request, name string, dst *float64) error {
	v := query(r, name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &paramError{name, fmt.Errorf("want a finite number, got %q", v)}
	}
	*dst = f
	return nil
}
