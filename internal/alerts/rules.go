package alerts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// Rule evaluation modes.
const (
	ModeThreshold  = "threshold"
	ModeRollingAvg = "rolling_avg"
)

const (
	defaultCooldown    = 15 * time.Minute
	defaultWindowHours = 3
	maxWindowHours     = 720
)

// ErrInvalidRule is returned by ValidateRules.
var ErrInvalidRule = errors.New("invalid alert rule")

// Rule raises an alert for a station when its observed level exceeds Threshold.
// ModeThreshold compares the latest reading; ModeRollingAvg compares the mean of
// the last WindowHours readings.
type Rule struct {
	Name        string        `json:"name"`
	Pollutant   string        `json:"pollutant"`
	Threshold   float64       `json:"threshold"`
	Mode        string        `json:"mode"`
	WindowHours int           `json:"window_hours,omitempty"`
	Cooldown    time.Duration `json:"-"`
}

// MarshalJSON renders Cooldown as a Go duration string.
func (r Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	return json.Marshal(struct {
		plain
		Cooldown string `json:"cooldown"`
	}{plain(r), r.Cooldown.String()})
}

// DefaultRules is used when config names none.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "pm25-rolling", Pollutant: "PM2.5", Threshold: 60, Mode: ModeRollingAvg, WindowHours: 3, Cooldown: defaultCooldown},
		{Name: "no2-spike", Pollutant: "NO2", Threshold: 100, Mode: ModeThreshold, Cooldown: defaultCooldown},
	}
}

// ValidateRules normalises rules in place (canonical pollutant, default mode,
// window and cooldown) and rejects unusable ones.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		r := &rules[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return fmt.Errorf("%w: rule %d has no name", ErrInvalidRule, i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("%w: duplicate rule name %q", ErrInvalidRule, r.Name)
		}
		seen[r.Name] = struct{}{}

		p, err := validation.CanonicalPollutant(r.Pollutant)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Name, err)
		}
		r.Pollutant = p

		if r.Threshold <= 0 {
			return fmt.Errorf("%w: %s: threshold must be positive", ErrInvalidRule, r.Name)
		}

		switch r.Mode {
		case "":
			r.Mode = ModeThreshold
		case ModeThreshold, ModeRollingAvg:
		default:
			return fmt.Errorf("%w: %s: unknown mode %q", ErrInvalidRule, r.Name, r.Mode)
		}
		if r.Mode == ModeRollingAvg {
			if r.WindowHours == 0 {
				r.WindowHours = defaultWindowHours
			}
			if r.WindowHours < 1 || r.WindowHours > maxWindowHours {
				return fmt.Errorf("%w: %s: window_hours must be 1-%d", ErrInvalidRule, r.Name, maxWindowHours)
			}
		}

		if r.Cooldown < 0 {
			return fmt.Errorf("%w: %s: cooldown must not be negative", ErrInvalidRule, r.Name)
		}
		if r.Cooldown == 0 {
			r.Cooldown = defaultCooldown
		}
	}
	return nil
}
