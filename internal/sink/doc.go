// Package sink holds the report delivery targets: files, email, a zap
// logger, Redis and an in-memory ring served over HTTP.
package sink
