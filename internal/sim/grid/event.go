package grid

import "fmt"

type EventKind uint8

const (
	EventReady EventKind = iota
	EventTerminated
	EventEnergyRecharged
	EventEnergyConsumed
	EventMoved
	EventTileContentUpdated
	EventAddedToBackpack
	EventRemovedFromBackpack
)

var eventKindNames = [...]string{
	EventReady:               "READY",
	EventTerminated:          "TERMINATED",
	EventEnergyRecharged:     "ENERGY_RECHARGED",
	EventEnergyConsumed:      "ENERGY_CONSUMED",
	EventMoved:               "MOVED",
	EventTileContentUpdated:  "TILE_CONTENT_UPDATED",
	EventAddedToBackpack:     "ADDED_TO_BACKPACK",
	EventRemovedFromBackpack: "REMOVED_FROM_BACKPACK",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EventKind) UnmarshalText(b []byte) error {
	for i, n := range eventKindNames {
		if n == string(b) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Event is something the host reports outside of a direct action result.
// Pos, Content and Quantity are set only when they apply to the kind.
type Event struct {
	Kind     EventKind `json:"kind"`
	Pos      *Pos      `json:"pos,omitempty"`
	Content  *Content  `json:"content,omitempty"`
	Quantity int       `json:"quantity,omitempty"`
}

func (e Event) String() string {
	s := e.Kind.String()
	if e.Pos != nil {
		s += " " + e.Pos.String()
	}
	if e.Content != nil {
		s += fmt.Sprintf(" %s", e.Content.Kind)
	}
	if e.Quantity != 0 {
		s += fmt.Sprintf(" x%d", e.Quantity)
	}
	return s
}
