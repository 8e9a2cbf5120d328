package service

import "errors"

// ErrForbidden is returned when a patient-scoped caller touches an
// appointment that is not theirs.
var ErrForbidden = errors.New("forbidden: insufficient permissions")
