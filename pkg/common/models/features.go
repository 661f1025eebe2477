package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FeatureNames lists the patient features in the order the scoring model expects them.
var FeatureNames = []string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

type PatientFeatures struct {
	Age      float64 `json:"age"`
	Sex      float64 `json:"sex"`
	Cp       float64 `json:"cp"`
	Trestbps float64 `json:"trestbps"`
	Chol     float64 `json:"chol"`
	Fbs      float64 `json:"fbs"`
	Restecg  float64 `json:"restecg"`
	Thalach  float64 `json:"thalach"`
	Exang    float64 `json:"exang"`
	Oldpeak  float64 `json:"oldpeak"`
	Slope    float64 `json:"slope"`
	Ca       float64 `json:"ca"`
	Thal     float64 `json:"thal"`
}

func (f *PatientFeatures) field(name string) *float64 {
	switch name {
	case "age":
		return &f.Age
	case "sex":
		return &f.Sex
	case "cp":
		return &f.Cp
	case "trestbps":
		return &f.Trestbps
	case "chol":
		return &f.Chol
	case "fbs":
		return &f.Fbs
	case "restecg":
		return &f.Restecg
	case "thalach":
		return &f.Thalach
	case "exang":
		return &f.Exang
	case "oldpeak":
		return &f.Oldpeak
	case "slope":
		return &f.Slope
	case "ca":
		return &f.Ca
	case "thal":
		return &f.Thal
	}
	return nil
}

func IsFeature(name string) bool {
	var f PatientFeatures
	return f.field(name) != nil
}

func (f PatientFeatures) Get(name string) (float64, bool) {
	ptr := f.field(name)
	if ptr == nil {
		return 0, false
	}
	return *ptr, true
}

func (f PatientFeatures) Map() map[string]float64 {
	out := make(map[string]float64, len(FeatureNames))
	for _, name := range FeatureNames {
		out[name] = *f.field(name)
	}
	return out
}

// Apply returns a copy of f with each delta added to its named field.
// Unknown names are ignored; callers validate deltas with ParseDeltas first.
func (f PatientFeatures) Apply(deltas map[string]float64) PatientFeatures {
	out := f
	for name, delta := range deltas {
		if ptr := out.field(name); ptr != nil {
			*ptr += delta
		}
	}
	return out
}

// FeaturesFromMap copies recognised numeric entries into a PatientFeatures.
// Missing entries stay zero, so it is only for already-validated or
// persisted snapshots.
func FeaturesFromMap(values map[string]interface{}) PatientFeatures {
	var f PatientFeatures
	for name, raw := range values {
		ptr := f.field(strings.ToLower(name))
		if ptr == nil {
			continue
		}
		if v, ok := toFloat(raw); ok {
			*ptr = v
		}
	}
	return f
}

var (
	featureSchema     *jsonschema.Schema
	featureSchemaErr  error
	featureSchemaOnce sync.Once
)

func patientFeatureSchema() (*jsonschema.Schema, error) {
	featureSchemaOnce.Do(func() {
		properties := make(map[string]interface{}, len(FeatureNames))
		for _, name := range FeatureNames {
			properties[name] = map[string]interface{}{"type": "number"}
		}
		doc, err := json.Marshal(map[string]interface{}{
			"type":       "object",
			"required":   FeatureNames,
			"properties": properties,
		})
		if err != nil {
			featureSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("patient_features.json", strings.NewReader(string(doc))); err != nil {
			featureSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		featureSchema, featureSchemaErr = compiler.Compile("patient_features.json")
	})
	return featureSchema, featureSchemaErr
}

// DecodeFeatures validates a raw request object. Missing fields are filled
// only from declared defaults; anything else missing or non-numeric is a
// ValidationError.
func DecodeFeatures(raw map[string]interface{}, defaults map[string]float64) (PatientFeatures, error) {
	if raw == nil {
		return PatientFeatures{}, NewValidationError("patient features are required")
	}

	payload := make(map[string]interface{}, len(raw)+len(defaults))
	for k, v := range raw {
		payload[k] = v
	}
	for name, value := range defaults {
		if current, ok := payload[name]; !ok || current == nil {
			payload[name] = value
		}
	}

	schema, err := patientFeatureSchema()
	if err != nil {
		return PatientFeatures{}, fmt.Errorf("compile feature schema: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return PatientFeatures{}, NewValidationError("invalid patient features: %s", describeSchemaError(err, payload))
	}

	var f PatientFeatures
	for _, name := range FeatureNames {
		v, _ := toFloat(payload[name])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return PatientFeatures{}, NewValidationError("feature %s must be finite", name)
		}
		*f.field(name) = v
	}
	return f, nil
}

// ParseDeltas validates a sparse what-if adjustment map. Zero entries are dropped.
func ParseDeltas(raw map[string]interface{}) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for name, value := range raw {
		if !IsFeature(name) {
			return nil, NewValidationError("unknown feature %q in deltas", name)
		}
		v, ok := toFloat(value)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, NewValidationError("delta for %s must be a finite number", name)
		}
		if v != 0 {
			out[name] = v
		}
	}
	return out, nil
}

// describeSchemaError lists missing or non-numeric features in a stable order
// instead of the schema library's nested output.
func describeSchemaError(err error, payload map[string]interface{}) string {
	var missing, invalid []string
	for _, name := range FeatureNames {
		value, ok := payload[name]
		if !ok || value == nil {
			missing = append(missing, name)
			continue
		}
		if _, numeric := value.(float64); !numeric {
			if _, number := value.(json.Number); !number {
				invalid = append(invalid, name)
			}
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "non-numeric "+strings.Join(invalid, ", "))
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, "; ")
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
