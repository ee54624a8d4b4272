package engine

import "time"

type EventType int

const (
	EventEntry EventType = iota
	EventSignalExit
	EventStopHit
	EventTakeProfitHit
	EventMaxHoldingExit
	EventFinalLiquidation
)

// Event is one execution step in the replay, kept for forensics on a run.
type Event struct {
	Date   time.Time
	Type   EventType
	Price  float64
	Shares int
}

// EventLog is the append-only execution trace of a single run.
type EventLog struct {
	Events []Event
}

func (l *EventLog) Append(e Event) { l.Events = append(l.Events, e) }
