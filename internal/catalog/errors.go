package catalog

import "errors"

// ErrStatus is wrapped by errors for non-2xx catalog responses.
var ErrStatus = errors.New("catalog returned an error status")
