package testresource

// Monitor observes a TestResource's block-count counters across a window of
// activity. It takes a snapshot at construction (or at Reset), and every
// predicate method compares the subject's current counters against that
// snapshot. A Monitor must not outlive the TestResource it watches; nothing
// enforces this, the same way nothing stops a dangling pointer in the
// source's equivalent RAII type.
type Monitor struct {
	subject *TestResource

	initialInUse int64
	initialMax   int64
	initialTotal int64
}

// NewMonitor snapshots subject's current blocksInUse/maxBlocks/totalBlocks.
func NewMonitor(subject *TestResource) *Monitor {
	m := &Monitor{subject: subject}
	m.Reset()
	return m
}

// Reset re-takes the snapshot from the subject's current counters.
func (m *Monitor) Reset() {
	m.initialInUse = m.subject.BlocksInUse()
	m.initialMax = m.subject.MaxBlocks()
	m.initialTotal = m.subject.TotalBlocks()
}

// DeltaBlocksInUse is the subject's current blocksInUse minus the snapshot.
func (m *Monitor) DeltaBlocksInUse() int64 {
	return m.subject.BlocksInUse() - m.initialInUse
}

// DeltaMaxBlocks is the subject's current maxBlocks minus the snapshot.
func (m *Monitor) DeltaMaxBlocks() int64 {
	return m.subject.MaxBlocks() - m.initialMax
}

// DeltaTotalBlocks is the subject's current totalBlocks minus the snapshot.
func (m *Monitor) DeltaTotalBlocks() int64 {
	return m.subject.TotalBlocks() - m.initialTotal
}

func (m *Monitor) IsInUseDown() bool { return m.DeltaBlocksInUse() < 0 }
func (m *Monitor) IsInUseSame() bool { return m.DeltaBlocksInUse() == 0 }
func (m *Monitor) IsInUseUp() bool   { return m.DeltaBlocksInUse() > 0 }

func (m *Monitor) IsMaxSame() bool { return m.DeltaMaxBlocks() == 0 }
func (m *Monitor) IsMaxUp() bool   { return m.DeltaMaxBlocks() > 0 }

func (m *Monitor) IsTotalSame() bool { return m.DeltaTotalBlocks() == 0 }
func (m *Monitor) IsTotalUp() bool   { return m.DeltaTotalBlocks() > 0 }
