package normalizer

// Passthrough keeps aggregate payloads (cohorts, fairness, global importance,
// health) opaque. Only the outer shape is fixed: a non-object body is wrapped
// under "data" so clients always receive a JSON object.
func Passthrough(raw interface{}) map[string]interface{} {
	if obj, ok := extractMap(raw); ok {
		return obj
	}
	if raw == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{"data": raw}
}
