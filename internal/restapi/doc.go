// Package restapi implements the HTTP surface over a mnemo.Service
// using gin, mirroring the teacher's REST API layer's route grouping,
// middleware stack, and response envelope conventions.
package restapi
