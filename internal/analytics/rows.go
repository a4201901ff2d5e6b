package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/atlasmed/casematch-backend/internal/assignments"
	"github.com/atlasmed/casematch-backend/pkg/enums"
)

// Envelope is the decoded Pub/Sub message handed to the analytics handler.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Data          json.RawMessage
}

// AssignmentEventRow mirrors the assignment_events BigQuery schema. Case-level
// events land in the same table with the assignment columns left null.
type AssignmentEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	AggregateType string             `bigquery:"aggregate_type"`
	AggregateID   string             `bigquery:"aggregate_id"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	CaseID        *string            `bigquery:"case_id"`
	ProviderID    *string            `bigquery:"provider_id"`
	Status        *string            `bigquery:"status"`
	Priority      *string            `bigquery:"priority"`
	MatchScore    *float64           `bigquery:"match_score"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// BuildRow flattens an envelope into the warehouse row shape.
func BuildRow(envelope Envelope) (AssignmentEventRow, error) {
	row := AssignmentEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt,
		Payload:       encodeJSON(envelope.Data),
	}

	switch envelope.AggregateType {
	case enums.AggregateAssignment:
		var payload assignments.AssignmentEventPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return AssignmentEventRow{}, fmt.Errorf("decode assignment payload: %w", err)
		}
		caseID := payload.CaseID.String()
		providerID := payload.ProviderID.String()
		status := payload.Status
		priority := payload.Priority
		score := payload.MatchScore
		row.CaseID = &caseID
		row.ProviderID = &providerID
		row.Status = &status
		row.Priority = &priority
		row.MatchScore = &score

	case enums.AggregateCase:
		var payload assignments.CaseEventPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return AssignmentEventRow{}, fmt.Errorf("decode case payload: %w", err)
		}
		caseID := payload.CaseID.String()
		status := payload.Status
		row.CaseID = &caseID
		row.Status = &status

	default:
		return AssignmentEventRow{}, fmt.Errorf("unsupported aggregate type %q", envelope.AggregateType)
	}

	return row, nil
}

func encodeJSON(data json.RawMessage) cbigquery.NullJSON {
	if len(data) == 0 {
		return cbigquery.NullJSON{}
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(data)}
}
