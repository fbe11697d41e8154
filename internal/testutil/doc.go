// Package testutil holds test doubles shared across packages: a recording
// core.Signaler and a scripted model.Model.
package testutil
