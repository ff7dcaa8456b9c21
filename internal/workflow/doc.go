// Package workflow orchestrates the voice building pipeline.
//
// A Manager polls the queue across two lanes. The foreground lane runs the
// fetch stage so downloads continue while the background lane grinds
// through prepare, transcribe, train, and export one item at a time. Each
// stage claim moves the item into a processing status guarded by a
// heartbeat; items whose heartbeat goes stale are returned to the stage's
// start status for a later daemon to pick up.
package workflow
