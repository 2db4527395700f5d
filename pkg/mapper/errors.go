package mapper

import "github.com/pkg/errors"

// ErrSilent marks a policy-violation failure whose explanation has
// already been surfaced to the operator (§7, "Policy violation"; §6,
// "SILENT_ERROR means the help-text was already emitted; callers must not
// re-report"). Callers should check errors.Is(err, ErrSilent) before
// logging it again.
var ErrSilent = errors.New("mapper: silent error")

// ErrNotFound signals a requested topology object does not exist —
// usually because a node carries no objects of the requested type.
var ErrNotFound = errors.New("mapper: object not found")

// ErrOutOfResource signals proc allocation failed. The round-robin mapper
// as implemented here never allocates in a way that can fail, but the
// boundary is kept so a future Proc-pool-backed setupProc can surface it
// without changing every mapper's signature.
var ErrOutOfResource = errors.New("mapper: out of resource")
