// Package cargomcp provides a local tool server that lets a language model
// drive a Cargo project: run builds and tests, read structured compiler
// diagnostics, and look up the generated rustdoc API documentation.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, goquery/, mcp/).
package cargomcp
