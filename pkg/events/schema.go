package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult reports every violated field of an event. It is a value,
// never an error: the validator itself does not fail.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Legacy identifier prefixes accepted alongside RFC 4122 UUIDs. Compatibility
// shim for events produced by older test and debug tooling; do not widen.
var legacyEventIDPrefixes = []string{"test-", "debug-"}

func stateEnum(nullable bool) []any {
	values := make([]any, 0, len(models.BookStates)+1)

	for _, state := range models.BookStates {
		values = append(values, string(state))
	}

	if nullable {
		values = append(values, nil)
	}

	return values
}

func statusChangeSchema() map[string]any {
	nonEmptyString := func() map[string]any {
		return map[string]any{"type": "string", "minLength": 1}
	}

	return map[string]any{
		"type": "object",
		"required": []any{
			"eventType", "eventId", "timestamp", "source", "schemaVersion", "payload",
		},
		"properties": map[string]any{
			"eventType":     map[string]any{"type": "string"},
			"eventId":       map[string]any{"type": "string"},
			"timestamp":     map[string]any{"type": "string"},
			"source":        map[string]any{"type": "string"},
			"schemaVersion": map[string]any{"type": "string"},
			"payload": map[string]any{
				"type": "object",
				"required": []any{
					"subjectId", "title", "ownerName", "previousState", "newState", "changedBy",
				},
				"properties": map[string]any{
					"subjectId": nonEmptyString(),
					"title":     nonEmptyString(),
					"ownerName": nonEmptyString(),
					"previousState": map[string]any{
						"type": []any{"string", "null"},
						"enum": stateEnum(true),
					},
					"newState": map[string]any{
						"type": "string",
						"enum": stateEnum(false),
					},
					"changedBy": nonEmptyString(),
					"reason":    map[string]any{"type": "string"},
					"metadata":  map[string]any{"type": "object"},
				},
			},
		},
	}
}

// ValidateStatusChange validates raw event bytes against the wire schema,
// collecting every violation rather than stopping at the first.
func ValidateStatusChange(raw []byte) ValidationResult {
	var doc map[string]any

	if err := json.Unmarshal(raw, &doc); err != nil {
		return ValidationResult{Valid: false, Errors: []string{
			"event is not a JSON object: " + err.Error(),
		}}
	}

	return ValidateStatusChangeDocument(doc)
}

// ValidateStatusChangeDocument validates an already-parsed event document.
func ValidateStatusChangeDocument(doc map[string]any) ValidationResult {
	violations := make([]string, 0)

	schemaLoader := gojsonschema.NewGoLoader(statusChangeSchema())
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		violations = append(violations, "schema validation failed: "+err.Error())
	} else {
		for _, schemaErr := range result.Errors() {
			violations = append(violations, schemaErr.String())
		}
	}

	// The structural pass names missing and mistyped fields; the checks below
	// only apply where the field is a present string, so an event never gets
	// two errors for the same defect.
	if eventType, ok := doc["eventType"].(string); ok && eventType != string(BookStatusChangedEvent) {
		violations = append(violations, fmt.Sprintf("eventType: must be %q, got %q", BookStatusChangedEvent, eventType))
	}

	if source, ok := doc["source"].(string); ok && source != EventSource {
		violations = append(violations, fmt.Sprintf("source: must be %q, got %q", EventSource, source))
	}

	if schemaVersion, ok := doc["schemaVersion"].(string); ok && schemaVersion != SchemaVersion {
		violations = append(violations, fmt.Sprintf("schemaVersion: must be %q, got %q", SchemaVersion, schemaVersion))
	}

	if eventID, ok := doc["eventId"].(string); ok && !validEventID(eventID) {
		violations = append(violations, fmt.Sprintf("eventId: %q is neither a UUID nor a recognized legacy identifier", eventID))
	}

	if timestamp, ok := doc["timestamp"].(string); ok {
		if err := validateTimestamp(timestamp); err != nil {
			violations = append(violations, "timestamp: "+err.Error())
		}
	}

	return ValidationResult{Valid: len(violations) == 0, Errors: violations}
}

// ParseAndValidate validates raw bytes and, when valid, decodes them into the
// typed event. Downstream code never re-inspects raw payloads.
func ParseAndValidate(raw []byte) (*BookStatusChange, ValidationResult) {
	result := ValidateStatusChange(raw)
	if !result.Valid {
		return nil, result
	}

	var event BookStatusChange

	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, ValidationResult{Valid: false, Errors: []string{
			"failed to decode validated event: " + err.Error(),
		}}
	}

	return &event, result
}

func validEventID(id string) bool {
	if _, err := uuid.Parse(id); err == nil {
		return true
	}

	for _, prefix := range legacyEventIDPrefixes {
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return true
		}
	}

	return false
}

func validateTimestamp(value string) error {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fmt.Errorf("not a valid RFC3339 instant: %q", value)
	}

	if parsed.Format(time.RFC3339Nano) != value && parsed.Format(time.RFC3339) != value {
		return fmt.Errorf("does not round-trip exactly: %q", value)
	}

	return nil
}
