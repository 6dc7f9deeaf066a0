package http

import (
	"context"
	"time"

	"jabberwocky238/jw238ddns/types"
	"jabberwocky238/jw238ddns/update"
)

// Resyncer is the part of the reconciliation loop the API talks to.
type Resyncer interface {
	ForceResync()
	LastPush() time.Time
	LastNewEntry() time.Time
	Interval() time.Duration
}

// RecordChecker compares a stored record with the authoritative server.
type RecordChecker interface {
	Check(ctx context.Context, r *types.DNSRecord) (*update.CheckResult, error)
}

// PushResponse is the data returned by POST /push.
type PushResponse struct {
	Scheduled bool `json:"scheduled"`
}

// ReconcileStatus is the reconciliation part of GET /status.
type ReconcileStatus struct {
	LastPush     time.Time `json:"last_push"`
	LastNewEntry time.Time `json:"last_new_entry"`
	Interval     string    `json:"interval"`
	NextResync   time.Time `json:"next_resync"`
}
