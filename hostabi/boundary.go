package hostabi

import (
	"go.uber.org/zap"
)

// Boundary is the fault boundary every foreign entry point runs inside.
// A panic raised anywhere below an entry point is trapped here, logged,
// and converted into the caller-supplied generic failure value, so the
// host language's unwinding machinery never crosses to the foreign side.
// Trapping is best-effort: it covers panics, not process aborts.
type Boundary struct {
	logger *zap.Logger
}

// NewBoundary creates a fault boundary that logs trapped faults through
// logger. A nil logger disables logging.
func NewBoundary(logger *zap.Logger) *Boundary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Boundary{logger: logger}
}

// Logger returns the boundary's logger.
func (b *Boundary) Logger() *zap.Logger { return b.logger }

// Guard runs fn and returns its code, or fallback if fn panics.
func Guard[C any](b *Boundary, fallback C, fn func() C) (code C) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("trapped panic at boundary",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			code = fallback
		}
	}()
	return fn()
}

// GuardHandle runs fn and returns its handle, or 0 if fn panics.
func (b *Boundary) GuardHandle(fn func() Handle) Handle {
	return Guard(b, 0, fn)
}

// GuardVoid runs fn, swallowing a panic.
func (b *Boundary) GuardVoid(fn func()) {
	Guard(b, struct{}{}, func() struct{} {
		fn()
		return struct{}{}
	})
}
