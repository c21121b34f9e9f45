package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// DayMirror keeps an external copy of the ledger in sync. Each write
	// replaces the owner's rows for the given period with the supplied days.
	DayMirror interface {
		// WriteDay replaces the mirrored rows of one day. A day without
		// items removes them.
		WriteDay(ctx context.Context, owner string, day core.DayGroup) error
		// WriteMonth replaces the mirrored rows of a whole month.
		WriteMonth(ctx context.Context, owner string, month, year int, days []core.DayGroup) error
	}
)
