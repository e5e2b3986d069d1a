package logging

// SessionHooks is the lifecycle contract the host runner drives the
// aggregator through. The runner invokes these against an injected
// implementation at fixed points; there is no name-based hook discovery.
//
// Call pattern per process:
//   - coordinator: OnConfigure once at startup, OnSessionFinish once after
//     every worker has been joined (the join is what guarantees collection
//     happens after each worker's final sync);
//   - worker: OnWorkerSetup once at startup, OnTestReportFinal after each
//     test's outcome is known, OnSessionFinish at shutdown.
type SessionHooks interface {
	// OnConfigure registers the shared directory for a coordinator process
	OnConfigure(sharedDir string) error
	// OnWorkerSetup registers the shared directory and this worker's identity
	OnWorkerSetup(sharedDir, workerID string) error
	// OnTestReportFinal records a test's final outcome and syncs the
	// worker's snapshot so a later crash loses at most the unsynced tail
	OnTestReportFinal(testID string, failed bool)
	// OnSessionFinish performs the final sync (worker) or the final
	// collection plus shared root teardown (coordinator)
	OnSessionFinish() error
}

var _ SessionHooks = (*Aggregator)(nil)

// OnConfigure registers the shared directory without a worker identity,
// putting the process in coordinator mode.
func (a *Aggregator) OnConfigure(sharedDir string) error {
	return a.Register(sharedDir, "")
}

// OnWorkerSetup registers both the shared directory and worker identity
// handed down by the coordinator.
func (a *Aggregator) OnWorkerSetup(sharedDir, workerID string) error {
	return a.Register(sharedDir, workerID)
}

// OnTestReportFinal marks the test failed when it failed, then syncs. Sync
// failures are reported and swallowed; a lost snapshot write must not fail
// the test run.
func (a *Aggregator) OnTestReportFinal(testID string, failed bool) {
	if failed && a.workerID != "" {
		a.MarkFailed(testID)
	}
	if err := a.SyncLogs(); err != nil {
		a.log.Warn("Failed to sync test logs", "test", testID, "err", err)
	}
}

// OnSessionFinish runs the final sync in a worker. In the coordinator it
// collects every worker snapshot and then destroys the shared root; the
// destroy proceeds even when collection had problems so the run never
// leaks the shared directory.
func (a *Aggregator) OnSessionFinish() error {
	if a.workerID != "" {
		return a.SyncLogs()
	}
	if a.store == nil {
		return nil
	}
	if err := a.CollectWorkerLogs(); err != nil {
		a.log.Warn("Failed to collect worker logs", "err", err)
	}
	return a.store.Destroy()
}
