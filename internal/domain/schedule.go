package domain

import "time"

// ScheduleEventOrigin marks events emitted by the poll engine
const ScheduleEventOrigin = "poll"

// ScheduleEvent is the winning time window of a finished schedule poll,
// handed to the external schedule collaborator. Upserts are keyed on
// (Origin, PollID) so dynamic re-tallies never duplicate events.
type ScheduleEvent struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	PollID      int64     `json:"poll_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}
