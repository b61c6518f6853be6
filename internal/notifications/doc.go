// Package notifications delivers run events via ntfy and pings a health
// check endpoint after scheduled runs.
//
// Both transports degrade to no-ops when their URL is not configured, so the
// pipeline can publish unconditionally. Delivery failures are returned to the
// caller, which logs them as warnings; a notification never fails a run.
package notifications
