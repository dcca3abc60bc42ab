// Package modlife uses the CloudEvents specification for lifecycle
// events so audit consumers interoperate with external systems without
// a bespoke envelope.
package modlife

import (
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// EventType constants for lifecycle events emitted by the core.
// Following the CloudEvents specification, these use reverse domain
// notation.
const (
	// Module lifecycle events
	EventTypeModuleActivated        = "com.modlife.module.activated"
	EventTypeModuleActivationFailed = "com.modlife.module.activation_failed"
	EventTypeModuleDeactivated      = "com.modlife.module.deactivated"

	// Schema update events
	EventTypeMigrationStarted   = "com.modlife.migration.started"
	EventTypeMigrationCompleted = "com.modlife.migration.completed"
	EventTypeMigrationFailed    = "com.modlife.migration.failed"

	// Catalog events
	EventTypeCatalogRefreshed = "com.modlife.catalog.refreshed"
)

// NewCloudEvent creates a CloudEvent with the required attributes set.
// The data payload is JSON-encoded; metadata entries become extensions.
func NewCloudEvent(eventType, source string, data interface{}, metadata map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// generateEventID generates a unique identifier for CloudEvents using
// UUIDv7, which includes timestamp information for time-ordered
// uniqueness.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails for any reason
		id = uuid.New()
	}
	return id.String()
}
