// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package reproducible

import (
	"os"
	"strconv"
	"sync"
	"time"
)

//nolint:gochecknoglobals // this needs to be global
var (
	nowOnce sync.Once
	now     time.Time
)

// Now returns the timestamp archive entries are stamped with: SOURCE_DATE_EPOCH if set and
// parseable, otherwise the Unix epoch. Unlike the wall-clock fallback a build timestamp tool might
// use, a fixed constant is required here so two builds of the same source tree are byte-identical
// even when SOURCE_DATE_EPOCH is unset.
func Now() time.Time {
	nowOnce.Do(func() {
		secs, err := strconv.ParseInt(os.Getenv("SOURCE_DATE_EPOCH"), 10, 64)
		if err != nil {
			secs = 0
		}
		now = time.Unix(secs, 0).UTC()
	})
	return now
}
