package loop

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRunID returns a time-ordered ULID for a run.
func NewRunID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// NewCallID returns CALL_<yyyymmdd_hhmmss>_<8 hex chars>.
func NewCallID(now time.Time) string {
	return fmt.Sprintf("CALL_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}
