package models

import "time"

// FreeBusyWindow is an externally reported interval during which the user is
// unavailable. Providers only ever report confirmed-busy time, never
// confirmed-free time, so BusyOnly is always true in practice.
type FreeBusyWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	BusyOnly bool      `json:"busy_only"`
	Source   string    `json:"source,omitempty"`
}
