// Package rules implements the audit rule set: independent evaluators that
// inspect normalized carrier rows for late deliveries, duplicate charges,
// known surcharges, fuel anomalies and dimensional-weight inflation. The
// tuned tables (service guide, surcharge patterns, dim factors) carry
// built-in defaults and can be overridden per deployment from a YAML file.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"parcel-audit/internal/domain"
)

// ServicePromise is one row of a carrier's service guide: a service-name
// fragment matched by containment against the uppercased service text, the
// promised business-day count, and the commit cutoff on the promised day.
// A 23:59:59 (or empty) cutoff means end of the promised day.
type ServicePromise struct {
	Match        string `json:"match" yaml:"match"`
	BusinessDays int    `json:"business_days" yaml:"business_days"`
	Cutoff       string `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
}

// SurchargePattern is one entry of the ordered surcharge keyword list.
// Patterns are compiled case-insensitive; list order decides which name
// labels a description that several patterns would match.
type SurchargePattern struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`

	re *regexp.Regexp
}

func (p *SurchargePattern) matches(description string) bool {
	return p.re != nil && p.re.MatchString(description)
}

func (p *SurchargePattern) isResidential() bool {
	return strings.Contains(strings.ToLower(p.Name), "residential")
}

// DimFactors are the dimensional-weight inputs for one carrier.
type DimFactors struct {
	Divisor      float64 `json:"divisor" yaml:"divisor"`
	RoundingStep float64 `json:"rounding_step" yaml:"rounding_step"`
}

// Ruleset carries every tuned table the evaluators consult. Start from
// Default or Load; the zero value matches nothing.
type Ruleset struct {
	Guide          map[domain.Carrier][]ServicePromise `json:"service_guide" yaml:"service_guide"`
	Surcharges     []SurchargePattern                  `json:"surcharges" yaml:"surcharges"`
	Dim            map[domain.Carrier]DimFactors       `json:"dim_weight" yaml:"dim_weight"`
	FuelPercentCap float64                             `json:"fuel_percent_cap" yaml:"fuel_percent_cap"`
}

// Default returns the built-in tables. Guide rows are ordered so the more
// specific service names precede the names they contain; ground services
// carry no delivery commitment and have no row.
func Default() *Ruleset {
	rs := &Ruleset{
		Guide: map[domain.Carrier][]ServicePromise{
			domain.CarrierUPS: {
				{Match: "NEXT DAY AIR EARLY", BusinessDays: 1, Cutoff: "08:00"},
				{Match: "NEXT DAY AIR SAVER", BusinessDays: 1, Cutoff: "23:59:59"},
				{Match: "NEXT DAY AIR", BusinessDays: 1, Cutoff: "10:30"},
				{Match: "2ND DAY AIR AM", BusinessDays: 2, Cutoff: "12:00"},
				{Match: "2ND DAY AIR", BusinessDays: 2, Cutoff: "23:59:59"},
				{Match: "3 DAY SELECT", BusinessDays: 3, Cutoff: "23:59:59"},
			},
			domain.CarrierFedEx: {
				{Match: "FIRST OVERNIGHT", BusinessDays: 1, Cutoff: "08:30"},
				{Match: "PRIORITY OVERNIGHT", BusinessDays: 1, Cutoff: "10:30"},
				{Match: "STANDARD OVERNIGHT", BusinessDays: 1, Cutoff: "15:00"},
				{Match: "2DAY AM", BusinessDays: 2, Cutoff: "10:30"},
				{Match: "2DAY", BusinessDays: 2, Cutoff: "16:30"},
				{Match: "EXPRESS SAVER", BusinessDays: 3, Cutoff: "16:30"},
			},
		},
		Surcharges: []SurchargePattern{
			{Name: "Address Correction", Pattern: `ADDRESS\s*CORRECTION`},
			{Name: "Residential Surcharge", Pattern: `RESIDENTIAL`},
			{Name: "Saturday Delivery", Pattern: `SATURDAY`},
			{Name: "Delivery Area Surcharge", Pattern: `DELIVERY\s*AREA`},
			{Name: "Additional Handling", Pattern: `ADDITIONAL\s*HANDLING`},
			{Name: "Oversize Package", Pattern: `OVERSIZE|LARGE\s*PACKAGE`},
			{Name: "Fuel Surcharge", Pattern: `FUEL`},
		},
		Dim: map[domain.Carrier]DimFactors{
			domain.CarrierUPS:   {Divisor: 139, RoundingStep: 1},
			domain.CarrierFedEx: {Divisor: 139, RoundingStep: 1},
		},
		FuelPercentCap: 35,
	}
	if err := rs.compile(); err != nil {
		panic("rules: built-in surcharge pattern: " + err.Error())
	}
	return rs
}

// Load returns the defaults overlaid with whichever sections the YAML file
// at path provides. An empty path means defaults only. Sequence order in
// the file is preserved, so an override controls rule precedence too.
func Load(path string) (*Ruleset, error) {
	rs := Default()
	if path == "" {
		return rs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var o Ruleset
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	for c, table := range o.Guide {
		rs.Guide[domain.Carrier(strings.ToUpper(string(c)))] = table
	}
	if len(o.Surcharges) > 0 {
		rs.Surcharges = o.Surcharges
	}
	for c, f := range o.Dim {
		rs.Dim[domain.Carrier(strings.ToUpper(string(c)))] = f
	}
	if o.FuelPercentCap > 0 {
		rs.FuelPercentCap = o.FuelPercentCap
	}

	if err := rs.compile(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

func (rs *Ruleset) compile() error {
	for i := range rs.Surcharges {
		p := &rs.Surcharges[i]
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return fmt.Errorf("surcharge pattern %q: %w", p.Name, err)
		}
		p.re = re
	}
	return nil
}

func (rs *Ruleset) dimFactors(carrier domain.Carrier) DimFactors {
	if f, ok := rs.Dim[carrier]; ok && f.Divisor > 0 {
		return f
	}
	return DimFactors{Divisor: 139, RoundingStep: 1}
}
