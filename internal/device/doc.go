// Package device drives the Android automation channel over adb.
//
// The dispatcher only depends on the Driver contract: one attempt per call,
// bounded by the configured command timeout, reported as (ok, detail) and
// never as a panic. The concrete ADB type additionally exposes the device
// utilities the dashboard uses (connection check, test tap, screen size,
// screenshot).
package device
