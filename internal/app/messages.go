package app

import "time"

// TickMsg triggers a snapshot refresh and frame update.
type TickMsg time.Time
