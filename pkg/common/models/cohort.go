package models

// CohortQuery filters the reference dataset. Every field is optional.
type CohortQuery struct {
	Sex    *int  `json:"sex,omitempty"`
	AgeMin *int  `json:"ageMin,omitempty"`
	AgeMax *int  `json:"ageMax,omitempty"`
	CPList []int `json:"cpList,omitempty"`
}

func (q CohortQuery) Validate() error {
	if q.Sex != nil && *q.Sex != 0 && *q.Sex != 1 {
		return NewValidationError("sex must be 0 or 1")
	}
	if q.AgeMin != nil && *q.AgeMin < 0 {
		return NewValidationError("ageMin must not be negative")
	}
	if q.AgeMax != nil && *q.AgeMax < 0 {
		return NewValidationError("ageMax must not be negative")
	}
	if q.AgeMin != nil && q.AgeMax != nil && *q.AgeMin > *q.AgeMax {
		return NewValidationError("ageMin must not exceed ageMax")
	}
	return nil
}

// UpstreamPayload carries both the UI spelling and the scoring service's
// snake_case spelling of each filter.
func (q CohortQuery) UpstreamPayload() map[string]interface{} {
	body := map[string]interface{}{}
	if q.Sex != nil {
		body["sex"] = *q.Sex
	}
	if q.AgeMin != nil {
		body["ageMin"] = *q.AgeMin
		body["age_min"] = *q.AgeMin
	}
	if q.AgeMax != nil {
		body["ageMax"] = *q.AgeMax
		body["age_max"] = *q.AgeMax
	}
	if len(q.CPList) > 0 {
		body["cpList"] = q.CPList
		body["cp"] = q.CPList
	}
	return body
}
