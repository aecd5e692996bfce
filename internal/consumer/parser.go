package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/touchflow/attribution-pipeline/internal/domain"
)

// JSONEventParser implements MessageParser for JSON-formatted tracking messages
type JSONEventParser struct{}

// NewJSONEventParser creates a new JSON event parser
func NewJSONEventParser() *JSONEventParser {
	return &JSONEventParser{}
}

// Parse parses a JSON message body into a RawEvent. Messages without a
// message_id get a generated one so the dedup key is never empty; deeper
// validation happens in the enrich stage.
func (p *JSONEventParser) Parse(body []byte) (*domain.RawEvent, error) {
	var msgBody map[string]interface{}
	if err := json.Unmarshal(body, &msgBody); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	propertiesJSON := "{}"
	if properties, ok := msgBody["properties"].(map[string]interface{}); ok && len(properties) > 0 {
		propertiesBytes, err := json.Marshal(properties)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal properties: %w", err)
		}
		propertiesJSON = string(propertiesBytes)
	}

	messageID := getStringField(msgBody, "message_id")
	if messageID == "" {
		messageID = uuid.NewString()
	}

	event := &domain.RawEvent{
		TeamID:      getStringField(msgBody, "team_id"),
		SourceID:    getStringField(msgBody, "source_id"),
		MessageID:   messageID,
		EventType:   getStringField(msgBody, "type"),
		EventName:   getStringField(msgBody, "event"),
		UserID:      getStringField(msgBody, "user_id"),
		AnonymousID: getStringField(msgBody, "anonymous_id"),
		SessionID:   getStringField(msgBody, "session_id"),
		Timestamp:   getInt64Field(msgBody, "timestamp"),
		Properties:  propertiesJSON,
		ReceivedAt:  time.Now(),
		Version:     uint64(time.Now().UnixNano()),
	}

	return event, nil
}

// Helper functions for extracting fields from parsed JSON
func getStringField(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Field(m map[string]interface{}, key string) int64 {
	if val, ok := m[key].(float64); ok {
		return int64(val)
	}
	return 0
}
