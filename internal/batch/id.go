// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package batch

import (
	"regexp"
	"time"
)

// Batch IDs are UTC timestamps shaped so that lexicographic order is
// chronological order, which lets history sort by key alone.
const batchIDLayout = "2006-01-02_150405"

var batchIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{6}$`)

// NewBatchID returns a batch ID for the given moment, in that moment's
// own location. Operators read these IDs against their local clock.
func NewBatchID(t time.Time) string {
	return t.Format(batchIDLayout)
}

// IsValidBatchID reports whether s is a well-formed batch ID. Used to
// reject path traversal in key construction before touching storage.
func IsValidBatchID(s string) bool {
	return batchIDPattern.MatchString(s)
}
