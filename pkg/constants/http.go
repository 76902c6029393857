// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Request and response headers the attendance API reads or sets.
const (
	AuthorizationHeader string = "authorization"

	// RequestIDHeader carries the request id end to end, including on
	// published attendance events.
	RequestIDHeader string = "X-REQUEST-ID"

	// XOnBehalfOfHeader names the usher or admin a request acts for.
	XOnBehalfOfHeader string = "x-on-behalf-of"

	ContentTypeHeader string = "Content-Type"
	OriginHeader      string = "Origin"
)

// Content types written by the API.
const (
	ContentTypeJSON  = "application/json"
	ContentTypePlain = "text/plain"
)

type contextRequestID string

// RequestIDContextID stores the request id in a request context.
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

type contextPrincipal string

// PrincipalContextID stores the acting principal in a request context.
const PrincipalContextID contextPrincipal = "x-on-behalf-of"
