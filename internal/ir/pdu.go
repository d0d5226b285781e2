package ir

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PDU is a persistent data unit as exchanged between servers.
//
// PDU satisfies stateres.Event. It is the representation used by the event
// store, the scenario harness and the CLI; the resolver itself only sees the
// read accessors.
type PDU struct {
	ID         EventID         `json:"event_id,omitempty"`
	Room       string          `json:"room_id"`
	SenderID   string          `json:"sender"`
	Timestamp  int64           `json:"origin_server_ts"`
	Kind       string          `json:"type"`
	RawContent json.RawMessage `json:"content"`
	Key        *string         `json:"state_key,omitempty"`
	Prev       []EventID       `json:"prev_events"`
	Auth       []EventID       `json:"auth_events"`
	RedactsID  *EventID        `json:"redacts,omitempty"`
	IsRejected bool            `json:"rejected,omitempty"`
}

func (p *PDU) EventID() EventID { return p.ID }
func (p *PDU) RoomID() string { return p.Room }
func (p *PDU) Sender() string { return p.SenderID }
func (p *PDU) OriginServerTS() int64 { return p.Timestamp }
func (p *PDU) Type() string { return p.Kind }
func (p *PDU) Content() json.RawMessage { return p.RawContent }
func (p *PDU) StateKey() *string { return p.Key }
func (p *PDU) PrevEvents() []EventID { return p.Prev }
func (p *PDU) AuthEvents() []EventID { return p.Auth }
func (p *PDU) Redacts() *EventID { return p.RedactsID }
func (p *PDU) Rejected() bool { return p.IsRejected }

// IsState reports whether the PDU carries a state key.
func (p *PDU) IsState() bool {
	return p.Key != nil
}

// Slot returns the state slot the PDU occupies.
// The second return is false for non-state events.
func (p *PDU) Slot() (StateKey, bool) {
	if p.Key == nil {
		return StateKey{}, false
	}
	return StateKey{Type: p.Kind, StateKey: *p.Key}, true
}

// yamlPDU mirrors PDU for YAML documents, where content is written as a
// native mapping rather than embedded JSON.
type yamlPDU struct {
	ID        EventID        `yaml:"event_id"`
	Room      string         `yaml:"room_id"`
	Sender    string         `yaml:"sender"`
	Timestamp int64          `yaml:"origin_server_ts"`
	Kind      string         `yaml:"type"`
	Content   map[string]any `yaml:"content"`
	Key       *string        `yaml:"state_key"`
	Prev      []EventID      `yaml:"prev_events"`
	Auth      []EventID      `yaml:"auth_events"`
	Redacts   *EventID       `yaml:"redacts"`
	Rejected  bool           `yaml:"rejected"`
}

// UnmarshalYAML decodes a PDU written in YAML. Content is re-encoded as JSON
// so that YAML and JSON fixtures produce identical events.
func (p *PDU) UnmarshalYAML(node *yaml.Node) error {
	var y yamlPDU
	if err := node.Decode(&y); err != nil {
		return err
	}

	content := y.Content
	if content == nil {
		content = map[string]any{}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("pdu %s: encode content: %w", y.ID, err)
	}

	*p = PDU{
		ID:         y.ID,
		Room:       y.Room,
		SenderID:   y.Sender,
		Timestamp:  y.Timestamp,
		Kind:       y.Kind,
		RawContent: raw,
		Key:        y.Key,
		Prev:       y.Prev,
		Auth:       y.Auth,
		RedactsID:  y.Redacts,
		IsRejected: y.Rejected,
	}
	return nil
}

// MarshalYAML renders the PDU with native YAML content.
func (p *PDU) MarshalYAML() (any, error) {
	content := map[string]any{}
	if len(p.RawContent) > 0 {
		if err := json.Unmarshal(p.RawContent, &content); err != nil {
			return nil, fmt.Errorf("pdu %s: decode content: %w", p.ID, err)
		}
	}
	return yamlPDU{
		ID:        p.ID,
		Room:      p.Room,
		Sender:    p.SenderID,
		Timestamp: p.Timestamp,
		Kind:      p.Kind,
		Content:   content,
		Key:       p.Key,
		Prev:      p.Prev,
		Auth:      p.Auth,
		Redacts:   p.RedactsID,
		Rejected:  p.IsRejected,
	}, nil
}

// StringPtr returns a pointer to s. Handy for state keys in literals.
func StringPtr(s string) *string {
	return &s
}
