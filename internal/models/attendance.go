// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Attendance statuses. A record is Present when created by a check-in and
// may only be corrected to NotPresent by an explicit administrative update.
const (
	StatusPresent    = "present"
	StatusNotPresent = "not_present"
)

// Attendance is one check-in record. There is at most one row per guest and
// calendar day (in the event time zone); CheckInDay is the day key used for
// the uniqueness constraint that makes same-day deduplication atomic.
type Attendance struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64     `db:"id" json:"id"`
	GuestID     int64     `db:"guest_id" json:"guest_id"`
	Status      string    `db:"status" json:"status"`
	Source      string    `db:"source" json:"source"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	CheckInDay  string    `db:"check_in_day" json:"check_in_day"`
	CheckInTime time.Time `db:"check_in_time" json:"check_in_time"`
}

// AttendanceDetail is an attendance row joined with its guest.
type AttendanceDetail struct {
	Attendance
	GuestName  string `db:"guest_name" json:"guest_name"`
	GuestPhone string `db:"guest_phone" json:"guest_phone"`
	Category   string `db:"category" json:"category"`
}

// AttendanceSummary aggregates check-ins for the dashboard.
type AttendanceSummary struct {
	TotalCheckIns   int64 `db:"total_check_ins" json:"total_check_ins"`
	PresentCount    int64 `db:"present_count" json:"present_count"`
	NotPresentCount int64 `db:"not_present_count" json:"not_present_count"`
}
