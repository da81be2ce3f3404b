package motion

// prepError is the concrete type behind the two prep_line failure kinds
// (spec §7); the OK status is a nil error. Inside PG/DG/LD there is no error channel at all — violations
// there are programmer errors, not something this package reports.
type prepError string

func (e prepError) Error() string { return string(e) }

var (
	// ErrInternal means prep_line/prep_dwell was called while the Prep
	// buffer was not owned by Exec. No state is mutated.
	ErrInternal = prepError("motion: prep buffer not owned by exec")

	// ErrZeroLengthMove means the requested duration was not finite or
	// fell below the configured epsilon. The segment is dropped silently;
	// the caller is expected to recover and try the next move.
	ErrZeroLengthMove = prepError("motion: zero-length or non-finite move")
)
