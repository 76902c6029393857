// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// DeleteWorkers bounds the concurrent deletes of a delete-everywhere call.
	DeleteWorkers int
	// FetchWorkers bounds the concurrent collection reads of one-shot queries
	// and summary views.
	FetchWorkers int
}
