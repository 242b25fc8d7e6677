// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"fmt"
)

// Diagnostics aggregates errors and warnings encountered while loading and validating a
// manifest, so a user sees every schema problem at once instead of the first one.
type Diagnostics struct {
	Errors   []error
	Warnings []error
}

// Add adds an error to the collector. If nil is given, nothing happens, so callers can write
// d.Add(maybeFailingCall()) without an intervening nil check.
func (d *Diagnostics) Add(err error) {
	if err != nil {
		d.Errors = append(d.Errors, err)
	}
}

// Addf adds an error built from a format string, mirroring fmt.Errorf.
func (d *Diagnostics) Addf(format string, args ...interface{}) {
	if len(args) > 0 {
		d.Errors = append(d.Errors, fmt.Errorf(format, args...))
	} else {
		d.Errors = append(d.Errors, errors.New(format))
	}
}

// Warn adds a non-fatal diagnostic (UnsupportedFeatureWarning-class issues).
func (d *Diagnostics) Warn(format string, args ...interface{}) {
	if len(args) > 0 {
		d.Warnings = append(d.Warnings, fmt.Errorf(format, args...))
	} else {
		d.Warnings = append(d.Warnings, errors.New(format))
	}
}

// HasErrors reports whether any fatal diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// Err combines all recorded errors into one, or returns nil if there are none.
func (d *Diagnostics) Err() error {
	if len(d.Errors) == 0 {
		return nil
	}
	return &AggregateError{Errors: append([]error(nil), d.Errors...)}
}

// AggregateError is a ManifestSchemaError-class failure combining multiple field-level errors.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d manifest errors:", len(e.Errors))
	for _, err := range e.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

func (e *AggregateError) Unwrap() []error { return e.Errors }
