package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"premiumcat/ml"
)

// applicantSchema mirrors the applicant invariants so malformed bodies are
// rejected with field-level messages before they reach the deriver.
var applicantSchema = mustApplicantSchema()

func mustApplicantSchema() *gojsonschema.Schema {
	doc := map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"age", "weight", "height", "income_lpa", "smoker", "occupation", "city"},
		"properties": map[string]interface{}{
			"age":        map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
			"weight":     map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
			"height":     map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
			"income_lpa": map[string]interface{}{"type": "number", "minimum": 0},
			"smoker":     map[string]interface{}{"type": "boolean"},
			"occupation": map[string]interface{}{"type": "string", "enum": ml.Occupations()},
			"city":       map[string]interface{}{"type": "string", "minLength": 1},
		},
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("applicant schema: %v", err))
	}
	return schema
}

// decodeApplicant validates body against the schema and then decodes it.
// The returned details list one message per violated field.
func decodeApplicant(body []byte) (ml.Applicant, []string, error) {
	var applicant ml.Applicant

	result, err := applicantSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return applicant, nil, fmt.Errorf("%w: malformed JSON body", ml.ErrInvalidInput)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return applicant, details, fmt.Errorf("%w: %s", ml.ErrInvalidInput, strings.Join(details, "; "))
	}

	// the schema accepts integral numbers such as 30.0 for age
	var decoded struct {
		ml.Applicant
		Age json.Number `json:"age"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return applicant, nil, fmt.Errorf("%w: %v", ml.ErrInvalidInput, err)
	}
	age, err := decoded.Age.Float64()
	if err != nil || age != math.Trunc(age) {
		return applicant, nil, fmt.Errorf("%w: age must be an integer, got %s", ml.ErrInvalidInput, decoded.Age)
	}
	applicant = decoded.Applicant
	applicant.Age = int(age)
	if err := applicant.Validate(); err != nil {
		return applicant, nil, err
	}
	return applicant, nil, nil
}
