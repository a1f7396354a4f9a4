// Package api holds the machine-readable contract of the booking API the
// portal consumes.
package api

import _ "embed"

// BookingAPISpec is the OpenAPI document of the consumed booking API
//
//go:embed booking-api.openapi.yaml
var BookingAPISpec []byte
