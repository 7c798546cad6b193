// internal/models/target.go
package models

// TargetContact is a contact record in the CRM.
type TargetContact struct {
	ID           string             `json:"id"`
	FirstName    string             `json:"firstName,omitempty"`
	LastName     string             `json:"lastName,omitempty"`
	Phone        string             `json:"phone,omitempty"`
	Email        string             `json:"email,omitempty"`
	Source       string             `json:"source,omitempty"`
	CustomFields []CustomFieldValue `json:"customFields,omitempty"`
}

// CustomFieldValue is a custom field as the CRM returns it. Depending on the
// endpoint the value arrives either in value or in fieldValueString.
type CustomFieldValue struct {
	ID               string      `json:"id"`
	Key              string      `json:"key,omitempty"`
	Value            interface{} `json:"value,omitempty"`
	FieldValueString string      `json:"fieldValueString,omitempty"`
}

// StringValue returns the field's value as a string regardless of which
// shape the API used.
func (f CustomFieldValue) StringValue() string {
	if f.FieldValueString != "" {
		return f.FieldValueString
	}
	if s, ok := f.Value.(string); ok {
		return s
	}
	return ""
}

// TargetOpportunity is a pipeline opportunity in the CRM.
type TargetOpportunity struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	PipelineID      string             `json:"pipelineId"`
	PipelineStageID string             `json:"pipelineStageId"`
	Status          string             `json:"status,omitempty"`
	ContactID       string             `json:"contactId,omitempty"`
	MonetaryValue   float64            `json:"monetaryValue,omitempty"`
	CustomFields    []CustomFieldValue `json:"customFields,omitempty"`
}

// CustomFieldString returns the string value of the custom field with the
// given id, or "" when the opportunity does not carry it.
func (o *TargetOpportunity) CustomFieldString(fieldID string) string {
	for _, f := range o.CustomFields {
		if f.ID == fieldID {
			return f.StringValue()
		}
	}
	return ""
}
