// internal/workers/change/create-change/validation.go
package createchange

import (
	"change-creator/internal/common/errors"
	"change-creator/internal/common/solarwinds"
	"change-creator/internal/common/validation"
)

const planningDatePattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`

// PayloadSchema describes what the service desk accepts for POST /changes.json.
func PayloadSchema() validation.JSONSchema {
	nonEmpty := validation.Property{Type: "string", MinLength: validation.IntPtr(1)}
	named := validation.Property{
		Type:       "object",
		Required:   []string{"name"},
		Properties: map[string]validation.Property{"name": {Type: "string"}},
	}
	date := validation.Property{Type: "string", Pattern: validation.StringPtr(planningDatePattern)}

	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"change"},
		Properties: map[string]validation.Property{
			"change": {
				Type:     "object",
				Required: []string{"name", "description", "requester", "category", "subcategory", "priority", "planning_fields"},
				Properties: map[string]validation.Property{
					"name": {
						Type:      "string",
						MinLength: validation.IntPtr(1),
						MaxLength: validation.IntPtr(maxNameLength),
					},
					"description": nonEmpty,
					"requester": {
						Type:       "object",
						Required:   []string{"email"},
						Properties: map[string]validation.Property{"email": nonEmpty},
					},
					"category":    named,
					"subcategory": named,
					"priority":    {Type: "string"},
					"planning_fields": {
						Type:     "object",
						Required: []string{"planned_start_date", "planned_end_date"},
						Properties: map[string]validation.Property{
							"planned_start_date": date,
							"planned_end_date":   date,
						},
					},
				},
				AdditionalProperties: validation.BoolPtr(false),
			},
		},
		AdditionalProperties: false,
	}
}

// ValidatePayload rejects a request the service desk would refuse or
// misfile. Failures are PAYLOAD_INVALID.
func ValidatePayload(req *solarwinds.ChangeRequest) error {
	result, err := validation.ValidateDocument(req, PayloadSchema())
	if err != nil {
		return errors.NewInternalError(err)
	}
	if !result.Valid {
		return errors.NewPayloadInvalidError(result.GetErrorMessages())
	}
	return nil
}
