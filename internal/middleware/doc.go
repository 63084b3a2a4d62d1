// Package middleware provides HTTP middleware for the ingest daemon's
// status server: W3C Extended Log Format access logging and Prometheus
// request metrics keyed by route template.
package middleware
