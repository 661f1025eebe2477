package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

func decode(t *testing.T, body string) interface{} {
	t.Helper()
	var out interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

type fixedClassifier string

func (c fixedClassifier) Label(float64) string { return string(c) }

func TestPredictionIsIdempotentOnCanonicalInput(t *testing.T) {
	canonical := models.PredictionResult{
		Prob:     0.42,
		Label:    models.LabelMedium,
		Contribs: map[string]float64{"a": 1, "b": -2},
	}
	encoded, err := json.Marshal(canonical)
	require.NoError(t, err)

	once := Prediction(decode(t, string(encoded)))
	assert.Equal(t, canonical, once)

	again, err := json.Marshal(once)
	require.NoError(t, err)
	assert.Equal(t, once, Prediction(decode(t, string(again))))
}

func TestShapTupleOrderTolerance(t *testing.T) {
	want := map[string]float64{"age": 0.5, "sex": -0.2}

	nameFirst := Prediction(decode(t, `{"shap":[["age",0.5],["sex",-0.2]]}`))
	valueFirst := Prediction(decode(t, `{"shap":[[0.5,"age"],[-0.2,"sex"]]}`))

	assert.Equal(t, want, nameFirst.Contribs)
	assert.Equal(t, want, valueFirst.Contribs)
}

func TestShapSkipsMalformedTuples(t *testing.T) {
	got := Prediction(decode(t, `{"shap":[["age",0.5],["a","b"],[1,2],["x"],"chol",["thal",null],["ca",0.1,3],["cp",-1]]}`))
	assert.Equal(t, map[string]float64{"age": 0.5, "cp": -1}, got.Contribs)
}

func TestContributionPrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want map[string]float64
	}{
		{"contribs object wins", `{"contribs":{"a":1},"contrib":{"b":2},"shap":[["c",3]]}`, map[string]float64{"a": 1}},
		{"contrib singular", `{"contrib":{"b":2},"shap":[["c",3]]}`, map[string]float64{"b": 2}},
		{"shap pairs", `{"shap":[["c",3]]}`, map[string]float64{"c": 3}},
		{"contribs pairs", `{"contribs":[["d",4]]}`, map[string]float64{"d": 4}},
		{"non-numeric object entries dropped", `{"contribs":{"a":"x","b":0.5}}`, map[string]float64{"b": 0.5}},
		{"nothing recognised", `{"weights":[1,2]}`, map[string]float64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Prediction(decode(t, tc.body)).Contribs)
		})
	}
}

func TestProbabilityAndLabelPrecedence(t *testing.T) {
	cases := []struct {
		body      string
		wantProb  float64
		wantLabel string
	}{
		{`{"prob":0.1,"score":0.2,"risk":0.3}`, 0.1, ""},
		{`{"score":0.2,"risk":0.3}`, 0.2, ""},
		{`{"risk":0.3}`, 0.3, ""},
		{`{"prob":"0.7"}`, 0.7, ""},
		{`{"prob":null,"score":0.25}`, 0.25, ""},
		{`{}`, 0, ""},
		{`{"prob":1.7}`, 1, ""},
		{`{"prob":0.5,"label":"High","riskLabel":"Low"}`, 0.5, "High"},
		{`{"prob":0.5,"riskLabel":"Low"}`, 0.5, "Low"},
	}
	for _, tc := range cases {
		got := Prediction(decode(t, tc.body))
		assert.InDelta(t, tc.wantProb, got.Prob, 1e-12, tc.body)
		assert.Equal(t, tc.wantLabel, got.Label, tc.body)
		assert.NotNil(t, got.Contribs, tc.body)
	}
}

func TestPredictionFromUpstreamServiceShape(t *testing.T) {
	got := Prediction(decode(t, `{"prob":0.81,"shap":[["age",0.12],["chol",-0.03]],"model":"heart-v1"}`))
	assert.Equal(t, 0.81, got.Prob)
	assert.Equal(t, "heart-v1", got.ModelVersion)
	assert.Equal(t, map[string]float64{"age": 0.12, "chol": -0.03}, got.Contribs)
}

func TestPredictionNonObject(t *testing.T) {
	for _, raw := range []interface{}{nil, "oops", []interface{}{1.0}, 3.0} {
		got := Prediction(raw)
		assert.Equal(t, 0.0, got.Prob)
		assert.Empty(t, got.Label)
		assert.NotNil(t, got.Contribs)
	}
}

func TestSessionPrecedence(t *testing.T) {
	n := NewSessionNormalizer(fixedClassifier("Derived"))
	n.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	row := n.Session(decode(t, `{"when":"2023-05-06T07:08:09Z","timestamp":"2020-01-01T00:00:00Z","model":"heart-v1","score":0.4,"prob":0.9}`))
	assert.Equal(t, time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC), row.CreatedAt)
	assert.Equal(t, "heart-v1", row.ModelVersion)
	assert.Equal(t, 0.4, row.RiskScore)
	assert.Equal(t, "Derived", row.RiskLabel)
	assert.NotEmpty(t, row.ID)

	canonical := n.Session(decode(t, `{"id":"s-1","createdAt":"2023-01-01T00:00:00Z","modelVersion":"v2","riskScore":0.2,"riskLabel":"Low","label":"High","patientFeatures":{"age":50,"trestbps":120},"contribs":{"age":0.3}}`))
	assert.Equal(t, "s-1", canonical.ID)
	assert.Equal(t, "v2", canonical.ModelVersion)
	assert.Equal(t, "Low", canonical.RiskLabel)
	assert.Equal(t, 50.0, canonical.PatientFeatures.Age)
	assert.Equal(t, 120.0, canonical.PatientFeatures.Trestbps)
	assert.Equal(t, map[string]float64{"age": 0.3}, canonical.Contribs)
}

func TestSessionDefaults(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := NewSessionNormalizer(fixedClassifier("Low"))
	n.now = func() time.Time { return now }

	row := n.Session(decode(t, `{}`))
	assert.Equal(t, now, row.CreatedAt)
	assert.Equal(t, "unknown", row.ModelVersion)
	assert.Equal(t, 0.0, row.RiskScore)
	assert.Equal(t, "Low", row.RiskLabel)
	assert.Equal(t, map[string]float64{}, row.Contribs)

	epoch := n.Session(decode(t, `{"timestamp":1700000000}`))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), epoch.CreatedAt)
}

func TestPassthrough(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"status": "ok"}, Passthrough(decode(t, `{"status":"ok"}`)))
	assert.Equal(t, map[string]interface{}{"data": []interface{}{1.0}}, Passthrough(decode(t, `[1]`)))
	assert.Equal(t, map[string]interface{}{}, Passthrough(nil))
}
