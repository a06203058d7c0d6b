package example

type EventType string

const (
	EventTypeConnected EventType = "connected"
	EventTypeDone      EventType = "done"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Event struct {
	Type EventType
}

type TranscriptMessage struct {
	Role Role
}

func bad() {
	e := &Event{}
	e.Type = "keepalive" // want "enum field Type assigned string literal"

	m := &TranscriptMessage{}
	m.Role = "tool" // want "enum field Role assigned string literal"
}

func good() {
	e := &Event{}
	e.Type = EventTypeConnected // OK: using constant

	m := &TranscriptMessage{}
	m.Role = RoleUser // OK: using constant
}

func alsoGood() {
	// OK: Variable, not literal
	role := RoleAssistant
	m := &TranscriptMessage{Role: role}
	_ = m
}
