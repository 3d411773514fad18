// Package testutil provides fluent builders and a run harness shared by the
// package tests. Not part of the public API.
package testutil
