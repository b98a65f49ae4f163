package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

const (
	nonBlank    = `"type": "string", "pattern": "\\S"`
	clockTime   = `"type": "string", "pattern": "^([01]?[0-9]|2[0-3]):[0-5][0-9]$"`
	calendarDay = `"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"`
	stringList  = `"type": "array", "items": {"type": "string"}`
)

// payloadSchemas holds one JSON Schema per event type. additionalProperties
// is left open so newer writers can add fields older readers keep.
var payloadSchemas = map[EventType]string{
	TypeReminder: `{
		"type": "object",
		"required": ["medication", "time"],
		"properties": {
			"medication": {` + nonBlank + `},
			"time": {` + clockTime + `},
			"dose": {"type": "string"},
			"frequency": {"type": "string"},
			"active": {"type": "boolean"}
		}
	}`,
	TypeAdherenceLog: `{
		"type": "object",
		"required": ["medication"],
		"properties": {
			"medication": {` + nonBlank + `},
			"time": {` + clockTime + `},
			"date": {` + calendarDay + `},
			"dose": {"type": "string"},
			"frequency": {"type": "string"}
		}
	}`,
	TypeDoctorAdvice: `{
		"type": "object",
		"required": ["doctor_id", "advice_text", "specialties"],
		"properties": {
			"doctor_id": {` + nonBlank + `},
			"advice_text": {` + nonBlank + `},
			"specialties": {"type": "array", "minItems": 1, "items": {` + nonBlank + `}},
			"unverified_specialty": {"type": "boolean"},
			"unrecognized_specialties": {` + stringList + `}
		}
	}`,
	TypePrescriptionSummary: `{
		"type": "object",
		"required": ["keywords", "suggested_specialties"],
		"properties": {
			"keywords": {` + stringList + `},
			"suggested_specialties": {` + stringList + `},
			"raw_excerpt": {"type": "string"},
			"source": {"type": "string"}
		}
	}`,
	TypeConflictFlag: `{
		"type": "object",
		"required": ["code", "medication", "message"],
		"properties": {
			"code": {` + nonBlank + `},
			"medication": {` + nonBlank + `},
			"message": {` + nonBlank + `},
			"related_event_ids": {"type": "array", "items": {"type": "integer"}}
		}
	}`,
	TypeInteractionLog: `{
		"type": "object",
		"required": ["query", "answer", "source"],
		"properties": {
			"query": {"type": "string"},
			"answer": {"type": "string"},
			"source": {` + nonBlank + `},
			"citations": {"type": "array", "items": {"type": "integer"}}
		}
	}`,
}

var compiledSchemas = mustCompileSchemas()

func mustCompileSchemas() map[EventType]*gojsonschema.Schema {
	out := make(map[EventType]*gojsonschema.Schema, len(payloadSchemas))
	for t, src := range payloadSchemas {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("model: compile %s schema: %v", t, err))
		}
		out[t] = s
	}
	return out
}

// validateSchema runs the JSON Schema for t against payload and converts the
// result into field errors sorted by field name.
func validateSchema(t EventType, payload json.RawMessage) []FieldError {
	schema, ok := compiledSchemas[t]
	if !ok {
		return []FieldError{{Field: "type", Message: fmt.Sprintf("no schema for %q", t)}}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return []FieldError{{Field: "payload", Message: err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	var errs []FieldError
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			} else {
				field = "payload"
			}
		}
		errs = append(errs, FieldError{Field: field, Message: desc.Description()})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}
