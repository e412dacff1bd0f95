package quota

import (
	"log/slog"
	"time"

	"aichat/internal/util"
)

// Ledger enforces daily prompt quotas per (identity, model).
//
// CheckAllowed fails closed: a counter that cannot be read must not grant
// unlimited usage. Increment is best-effort: once the user has an answer,
// a failed counter update is logged and swallowed rather than failing the
// request retroactively.
type Ledger struct {
	store Store
	today func() string
}

// NewLedger builds a ledger. today may be nil; it then reports the local
// calendar date, which is the effective day boundary for quota windows.
func NewLedger(store Store, today func() string) *Ledger {
	if today == nil {
		today = func() string { return time.Now().Format("2006-01-02") }
	}
	return &Ledger{store: store, today: today}
}

// CheckAllowed reports whether the identity may send one more prompt today.
// A promptLimit <= 0 means unlimited.
func (l *Ledger) CheckAllowed(identityID, modelName string, promptLimit int) bool {
	if promptLimit <= 0 {
		return true
	}
	used, err := l.store.UsageFor(identityID, modelName, l.today())
	if err != nil {
		slog.Error("quota read failed, denying prompt",
			"identity", util.HashIdentity(identityID), "model", modelName, "err", err)
		return false
	}
	return used < promptLimit
}

// Increment commits one consumed prompt. Called only after a successful
// provider reply so failed generations never charge quota.
func (l *Ledger) Increment(identityID, modelName string) {
	if err := l.store.IncrementUsage(identityID, modelName, l.today()); err != nil {
		slog.Error("quota increment failed after successful reply",
			"identity", util.HashIdentity(identityID), "model", modelName, "err", err)
	}
}
