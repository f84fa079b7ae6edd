// Package testutil has small helpers shared by the package tests.
package testutil

import (
	"testing"
	"time"
)

// Eventually polls cond until it holds or the timeout expires. Background
// sync work makes many assertions in this repo convergence-based rather
// than immediate.
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// FeatureDoc builds a one-feature configuration document for tests.
func FeatureDoc(featureID string, enabled bool, enabledValue, disabledValue string) string {
	e := "false"
	if enabled {
		e = "true"
	}
	return `{"features":[{"name":"` + featureID + `","feature_id":"` + featureID +
		`","type":"STRING","enabled":` + e +
		`,"enabled_value":"` + enabledValue + `","disabled_value":"` + disabledValue + `"}]}`
}
