package detect

import (
	"math"
	"sort"
	"strconv"
)

// Threshold keys.
const (
	LongFunctionLines     = "long_function_lines"
	LongParameterCount    = "long_parameter_count"
	LargeClassLines       = "large_class_lines"
	GodClassMethods       = "god_class_methods"
	FanOut                = "fan_out"
	FanIn                 = "fan_in"
	HubFanIn              = "hub_fan_in"
	HubFanOut             = "hub_fan_out"
	LargeModuleSymbols    = "large_module_symbols"
	DuplicateSymbolFiles  = "duplicate_symbol_files"
	InstabilityRatio      = "instability_ratio"
	InstabilityMinFanOut  = "instability_min_fan_out"
	BarrelFanOut          = "barrel_fan_out"
	ShotgunDependents     = "shotgun_dependents"
	DeepChainLength       = "deep_chain_length"
	GodComponentFunctions = "god_component_functions"

	FeatureEnvyImports       = "feature_envy_imports"
	CrossDirectoryCount      = "cross_directory_count"
	FeatureEnvyExternalCalls = "feature_envy_external_calls"
	MessageChainLength       = "message_chain_length"
	DemeterExternalFiles     = "demeter_external_files"
)

var defaultThresholds = map[string]float64{
	LongFunctionLines:     150,
	LongParameterCount:    6,
	LargeClassLines:       300,
	GodClassMethods:       25,
	FanOut:                20,
	FanIn:                 10,
	HubFanIn:              15,
	HubFanOut:             15,
	LargeModuleSymbols:    20,
	DuplicateSymbolFiles:  3,
	InstabilityRatio:      0.8,
	InstabilityMinFanOut:  8,
	BarrelFanOut:          10,
	ShotgunDependents:     10,
	DeepChainLength:       6,
	GodComponentFunctions: 6,

	FeatureEnvyImports:       8,
	CrossDirectoryCount:      3,
	FeatureEnvyExternalCalls: 5,
	MessageChainLength:       3,
	DemeterExternalFiles:     3,
}

// Thresholds maps threshold keys to values.
type Thresholds map[string]float64

// DefaultThresholds returns a fresh copy of the default thresholds.
func DefaultThresholds() Thresholds {
	th := make(Thresholds, len(defaultThresholds))
	for k, v := range defaultThresholds {
		th[k] = v
	}
	return th
}

// ThresholdKeys lists every known key, sorted.
func ThresholdKeys() []string {
	keys := make([]string, 0, len(defaultThresholds))
	for k := range defaultThresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply overrides th with the given values. Unknown keys and negative or
// non-finite values are rejected and nothing is applied.
func (th Thresholds) Apply(overrides map[string]float64) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := overrides[k]
		if _, ok := defaultThresholds[k]; !ok {
			return &ConfigError{Field: "threshold", Value: k, Reason: "unknown threshold key"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &ConfigError{Field: "threshold " + k, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "must be a non-negative number"}
		}
		if k == InstabilityRatio && v > 1 {
			return &ConfigError{Field: "threshold " + k, Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "must be between 0 and 1"}
		}
	}
	for _, k := range keys {
		th[k] = overrides[k]
	}
	return nil
}

// Float returns the value of key, falling back to the default.
func (th Thresholds) Float(key string) float64 {
	if v, ok := th[key]; ok {
		return v
	}
	return defaultThresholds[key]
}

// Int returns the value of key rounded up to a whole number.
func (th Thresholds) Int(key string) int {
	return int(math.Ceil(th.Float(key)))
}
