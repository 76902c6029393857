// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

const (
	// ServiceName is the name reported to tracing and metrics backends.
	ServiceName = "lfx-v2-attendance-service"

	// AttendanceAPIQueue is the NATS queue group shared by service replicas.
	AttendanceAPIQueue = "lfx.attendance-api.queue"
)
