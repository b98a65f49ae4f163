package model

import (
	"encoding/json"
	"testing"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidatePayload_Valid(t *testing.T) {
	for _, tc := range []struct {
		typ     EventType
		payload string
	}{
		{TypeReminder, `{"medication":"Metformin 500mg","time":"08:00","frequency":"daily"}`},
		{TypeAdherenceLog, `{"medication":"Metformin 500mg","time":"08:01","date":"2025-11-28"}`},
		{TypeDoctorAdvice, `{"doctor_id":"dr-1","advice_text":"Check lipids","specialties":["Cardiology"]}`},
		{TypePrescriptionSummary, `{"keywords":[],"suggested_specialties":["Primary Care"]}`},
		{TypeConflictFlag, `{"code":"DUPLICATE_TIMING","medication":"Metformin","message":"too close","related_event_ids":[1]}`},
		{TypeInteractionLog, `{"query":"q","answer":"a","source":"memory"}`},
	} {
		if err := ValidatePayload(tc.typ, json.RawMessage(tc.payload)); err != nil {
			t.Errorf("%s: unexpected error: %v", tc.typ, err)
		}
	}
}

func TestValidatePayload_UnknownFieldsAllowed(t *testing.T) {
	payload := `{"medication":"Aspirin","time":"21:00","pharmacy":"Main St"}`
	if err := ValidatePayload(TypeReminder, json.RawMessage(payload)); err != nil {
		t.Fatalf("unknown fields should be accepted, got: %v", err)
	}
}

func TestValidatePayload_MissingRequired(t *testing.T) {
	errs := fieldErrors(t, ValidatePayload(TypeReminder, json.RawMessage(`{"dose":"10mg"}`)))
	if !hasFieldError(errs, "medication") {
		t.Errorf("expected error on 'medication', got %v", errs)
	}
	if !hasFieldError(errs, "time") {
		t.Errorf("expected error on 'time', got %v", errs)
	}
}

func TestValidatePayload_BlankMedication(t *testing.T) {
	errs := fieldErrors(t, ValidatePayload(TypeAdherenceLog, json.RawMessage(`{"medication":"   "}`)))
	if !hasFieldError(errs, "medication") {
		t.Errorf("expected error on 'medication' for blank value, got %v", errs)
	}
}

func TestValidatePayload_BadTime(t *testing.T) {
	errs := fieldErrors(t, ValidatePayload(TypeReminder, json.RawMessage(`{"medication":"Aspirin","time":"25:99"}`)))
	if !hasFieldError(errs, "time") {
		t.Errorf("expected error on 'time', got %v", errs)
	}
}

func TestValidatePayload_EmptySpecialties(t *testing.T) {
	payload := `{"doctor_id":"dr-1","advice_text":"rest","specialties":[]}`
	errs := fieldErrors(t, ValidatePayload(TypeDoctorAdvice, json.RawMessage(payload)))
	if !hasFieldError(errs, "specialties") {
		t.Errorf("expected error on 'specialties', got %v", errs)
	}
}

func TestValidatePayload_TypeAndShape(t *testing.T) {
	errs := fieldErrors(t, ValidatePayload(EventType("bogus"), json.RawMessage(`{}`)))
	if !hasFieldError(errs, "type") {
		t.Error("expected error on 'type'")
	}
	errs = fieldErrors(t, ValidatePayload(TypeReminder, nil))
	if !hasFieldError(errs, "payload") {
		t.Error("expected error on 'payload' for empty payload")
	}
	errs = fieldErrors(t, ValidatePayload(TypeReminder, json.RawMessage(`{not json`)))
	if !hasFieldError(errs, "payload") {
		t.Error("expected error on 'payload' for invalid JSON")
	}
	errs = fieldErrors(t, ValidatePayload(TypeReminder, json.RawMessage(`[1,2]`)))
	if len(errs) == 0 {
		t.Error("expected errors for non-object payload")
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{}
	ve.Add("medication", "is required")
	ve.Add("time", "is required")
	want := "validation failed: medication: is required; time: is required"
	if ve.Error() != want {
		t.Errorf("Error() = %q, want %q", ve.Error(), want)
	}
}
