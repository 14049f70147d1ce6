package upload

import "github.com/pkg/errors"

// ErrBadRequest is returned when an UploadingArg fails validation. Per
// spec.md §4.2/§7, this leaves all state unchanged: every validation check
// runs before the reconciliation step, which discards a stale in-progress
// session only for a request that passed validation (the discard is itself
// not a failure).
var ErrBadRequest = errors.New("upload: bad request")
