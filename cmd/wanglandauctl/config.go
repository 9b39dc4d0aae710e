package main

import (
	"encoding/json"
	"fmt"
	"os"

	wlapi "wanglandau/pkg/wanglandau"
)

// loadRunRequestFromConfig decodes a run request from a JSON file. Keys
// absent from the file keep the request's zero value so the client's
// defaulting still applies.
func loadRunRequestFromConfig(path string) (wlapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return wlapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return wlapi.RunRequest{}, err
	}

	var req wlapi.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["system"]); ok {
		req.System = v
	}
	if v, ok := asString(raw["schedule"]); ok {
		req.Schedule = v
	}
	if v, ok := asString(raw["flatness"]); ok {
		req.Flatness = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asUint64(raw["max_steps"]); ok {
		req.MaxSteps = v
	}
	if v, ok := asInt(raw["sweep_len"]); ok {
		req.SweepLen = v
	}
	if v, ok := asFloat64(raw["ln_f0"]); ok {
		req.LnF0 = v
	}
	if v, ok := asFloat64(raw["ln_f_min"]); ok {
		req.LnFMin = v
	}
	if v, ok := asFloat64(raw["flat"]); ok {
		req.Flat = v
	}
	if v, ok := asFloat64(raw["alpha"]); ok {
		req.Alpha = v
	}
	if v, ok := asFloat64(raw["tol"]); ok {
		req.Tol = v
	}

	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case float64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags layers explicitly set command line flags over a
// config-file request.
func overrideFromFlags(req *wlapi.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "system":
			req.System = v.(string)
		case "schedule":
			req.Schedule = v.(string)
		case "flatness":
			req.Flatness = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "max-steps":
			req.MaxSteps = v.(uint64)
		case "sweep-len":
			req.SweepLen = v.(int)
		case "ln-f0":
			req.LnF0 = v.(float64)
		case "ln-f-min":
			req.LnFMin = v.(float64)
		case "flat":
			req.Flat = v.(float64)
		case "alpha":
			req.Alpha = v.(float64)
		case "tol":
			req.Tol = v.(float64)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (wlapi.RunRequest, error) {
	if configPath == "" {
		return wlapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return wlapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
