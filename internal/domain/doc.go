// Package domain contains the core concepts shared by the CLI converter and
// the HTTP export endpoint. Keep it free of transport (HTTP) and
// infrastructure (Redis/Chrome/Postgres) concerns.
package domain
