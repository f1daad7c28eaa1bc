// ABOUTME: Package documentation for identity resolution.
// ABOUTME: Explains how account addresses map to display profiles.

// Package identity maps participant account addresses to human-facing
// display profiles (name and role). The server loads a static table from
// configuration; unresolved accounts fall back to a shortened form of the
// raw address so UIs never show a full opaque identifier.
package identity
