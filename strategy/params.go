package strategy

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ceerkle/dreichor-trading/market"
)

// ErrDefaultPool is returned when the default pool is absent or malformed.
var ErrDefaultPool = errors.New("default parameter pool is missing or has an invalid schema")

// Parameter keys. A pool must carry exactly these, each a decimal string.
const (
	ParamHoldTime             = "holdTime"
	ParamCooldownTime         = "cooldownTime"
	ParamSwitchingSensitivity = "switchingSensitivity"
	ParamStabilityRequirement = "stabilityRequirement"
	ParamAllocation           = "allocation"
)

var parameterKeys = []string{
	ParamAllocation,
	ParamCooldownTime,
	ParamHoldTime,
	ParamStabilityRequirement,
	ParamSwitchingSensitivity,
}

// ParameterSet is a validated pool. Values are opaque; nothing here
// interprets them.
type ParameterSet struct {
	HoldTime             market.Decimal `json:"holdTime"`
	CooldownTime         market.Decimal `json:"cooldownTime"`
	SwitchingSensitivity market.Decimal `json:"switchingSensitivity"`
	StabilityRequirement market.Decimal `json:"stabilityRequirement"`
	Allocation           market.Decimal `json:"allocation"`
}

// ParameterPool is the selected pool handed to intent creation.
type ParameterPool struct {
	ID         string       `json:"id"`
	Parameters ParameterSet `json:"parameters"`
}

func (p ParameterPool) Allocation() market.Decimal {
	return p.Parameters.Allocation
}

// Catalog maps pool ids to raw, unvalidated pool bodies.
type Catalog map[string]map[string]any

const DefaultPoolID = "cautious@v1"

// DefaultCatalog returns the static v1 pools.
func DefaultCatalog() Catalog {
	return Catalog{
		"cautious@v1": {
			ParamHoldTime:             "10",
			ParamCooldownTime:         "10",
			ParamSwitchingSensitivity: "0.25",
			ParamStabilityRequirement: "0.9",
			ParamAllocation:           "0.25",
		},
		"balanced@v1": {
			ParamHoldTime:             "5",
			ParamCooldownTime:         "5",
			ParamSwitchingSensitivity: "0.5",
			ParamStabilityRequirement: "0.75",
			ParamAllocation:           "0.5",
		},
		"assertive@v1": {
			ParamHoldTime:             "2",
			ParamCooldownTime:         "2",
			ParamSwitchingSensitivity: "0.75",
			ParamStabilityRequirement: "0.6",
			ParamAllocation:           "1",
		},
	}
}

// LoadCatalog reads a YAML file of the form
//
//	pools:
//	  my@v1:
//	    holdTime: "4"
//	    ...
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool catalog: %w", err)
	}
	var doc struct {
		Pools Catalog `yaml:"pools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pool catalog: %w", err)
	}
	if len(doc.Pools) == 0 {
		return nil, fmt.Errorf("pool catalog %s defines no pools", path)
	}
	return doc.Pools, nil
}

// IDs returns the pool ids in sorted order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for k := range c {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

// parseParameterSet enforces the schema: exact key set, string values,
// decimal format. It reports ok=false for any violation.
func parseParameterSet(raw map[string]any) (ParameterSet, bool) {
	if raw == nil || len(raw) != len(parameterKeys) {
		return ParameterSet{}, false
	}
	vals := make(map[string]market.Decimal, len(parameterKeys))
	for _, k := range parameterKeys {
		v, ok := raw[k]
		if !ok {
			return ParameterSet{}, false
		}
		s, ok := v.(string)
		if !ok {
			return ParameterSet{}, false
		}
		d, err := market.NewDecimal(s)
		if err != nil {
			return ParameterSet{}, false
		}
		vals[k] = d
	}
	return ParameterSet{
		HoldTime:             vals[ParamHoldTime],
		CooldownTime:         vals[ParamCooldownTime],
		SwitchingSensitivity: vals[ParamSwitchingSensitivity],
		StabilityRequirement: vals[ParamStabilityRequirement],
		Allocation:           vals[ParamAllocation],
	}, true
}

type RejectionReason string

const (
	UnknownPool   RejectionReason = "UNKNOWN_POOL"
	InvalidSchema RejectionReason = "INVALID_SCHEMA"
)

// PoolSelection records which pool is in effect and, on fallback, why the
// requested one was refused.
type PoolSelection struct {
	Pool            ParameterPool   `json:"pool"`
	RejectedPoolID  string          `json:"rejectedPoolId,omitempty"`
	RejectionReason RejectionReason `json:"rejectionReason,omitempty"`
}

// SelectPool picks requested from catalog, falling back to defaultID.
// An empty requested id selects the default.
func SelectPool(catalog Catalog, defaultID, requested string) (PoolSelection, error) {
	def, ok := parseParameterSet(catalog[defaultID])
	if !ok {
		return PoolSelection{}, fmt.Errorf("%w: %q", ErrDefaultPool, defaultID)
	}
	fallback := PoolSelection{Pool: ParameterPool{ID: defaultID, Parameters: def}}

	if requested == "" {
		return fallback, nil
	}

	raw, found := catalog[requested]
	if !found {
		fallback.RejectedPoolID = requested
		fallback.RejectionReason = UnknownPool
		return fallback, nil
	}

	set, ok := parseParameterSet(raw)
	if !ok {
		fallback.RejectedPoolID = requested
		fallback.RejectionReason = InvalidSchema
		return fallback, nil
	}

	return PoolSelection{Pool: ParameterPool{ID: requested, Parameters: set}}, nil
}
