// Package normalizer turns the Scoring Service's loosely shaped JSON into the
// gateway's canonical types. Nothing here returns an error: unrecognised or
// missing data resolves to documented defaults.
package normalizer

import (
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

// Lookup order for each canonical field. Changing an order changes which
// upstream spelling wins when several are present.
var (
	probabilityKeys  = []string{"prob", "score", "risk"}
	labelKeys        = []string{"label", "riskLabel"}
	modelVersionKeys = []string{"modelVersion", "model", "version"}
)

// Prediction normalizes an upstream /predict body. Label stays empty when
// upstream supplies none, so the risk labeler can fill it in.
func Prediction(raw interface{}) models.PredictionResult {
	data, ok := extractMap(raw)
	if !ok {
		return models.PredictionResult{Contribs: map[string]float64{}}
	}

	prob, _ := firstFloat(data, probabilityKeys...)
	label, _ := firstString(data, labelKeys...)
	version, _ := firstString(data, modelVersionKeys...)

	return models.PredictionResult{
		Prob:         clampProbability(prob),
		Label:        label,
		Contribs:     Contributions(data),
		ModelVersion: version,
	}
}

// Contributions extracts per-feature attributions. First match wins:
//  1. "contribs" object
//  2. "contrib" object
//  3. "shap" array of [name, value] or [value, name] pairs
//  4. "contribs" array of pairs
//  5. empty mapping
func Contributions(data map[string]interface{}) map[string]float64 {
	if obj, ok := extractMap(data["contribs"]); ok {
		return numericEntries(obj)
	}
	if obj, ok := extractMap(data["contrib"]); ok {
		return numericEntries(obj)
	}
	if pairs, ok := data["shap"].([]interface{}); ok {
		return pairEntries(pairs)
	}
	if pairs, ok := data["contribs"].([]interface{}); ok {
		return pairEntries(pairs)
	}
	return map[string]float64{}
}

func numericEntries(obj map[string]interface{}) map[string]float64 {
	out := make(map[string]float64, len(obj))
	for key, value := range obj {
		if f, ok := getFloat(value); ok {
			out[key] = f
		}
	}
	return out
}

// pairEntries reads 2-element tuples holding one string and one finite
// number in either order. Anything else is skipped.
func pairEntries(pairs []interface{}) map[string]float64 {
	out := make(map[string]float64, len(pairs))
	for _, item := range pairs {
		tuple, ok := item.([]interface{})
		if !ok || len(tuple) != 2 {
			continue
		}
		if name, value, ok := namedValue(tuple[0], tuple[1]); ok {
			out[name] = value
			continue
		}
		if name, value, ok := namedValue(tuple[1], tuple[0]); ok {
			out[name] = value
		}
	}
	return out
}

func namedValue(nameField, valueField interface{}) (string, float64, bool) {
	name, ok := nameField.(string)
	if !ok || name == "" {
		return "", 0, false
	}
	value, ok := getNumber(valueField)
	if !ok {
		return "", 0, false
	}
	return name, value, true
}
