package pipeline

import "sync"

// RunStats tracks aggregate counters and byte totals across a batch run.
// Workers update it through the locked helpers; main reads the fields
// after Run returns.
type RunStats struct {
	mu sync.Mutex

	Total       int   // units of work discovered
	Done        int   // units finished, any status
	Written     int   // output files committed
	Skipped     int   // outputs kept or scenes left out
	Failed      int   // units with at least one failure
	InputBytes  int64 // total size of the source files
	OutputBytes int64 // total size of the committed outputs
	started     int
}

// next reserves the 1-based display index of the next unit to start.
func (s *RunStats) next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.started
}

func (s *RunStats) addInput(n int64) {
	s.mu.Lock()
	s.InputBytes += n
	s.mu.Unlock()
}

func (s *RunStats) addWritten(n int64) {
	s.mu.Lock()
	s.Written++
	s.OutputBytes += n
	s.mu.Unlock()
}

func (s *RunStats) addSkipped() {
	s.mu.Lock()
	s.Skipped++
	s.mu.Unlock()
}

func (s *RunStats) unitDone(failed bool) {
	s.mu.Lock()
	s.Done++
	if failed {
		s.Failed++
	}
	s.mu.Unlock()
}

// Delta returns output minus input bytes. Negative means the outputs are
// smaller than their sources.
func (s *RunStats) Delta() int64 {
	return s.OutputBytes - s.InputBytes
}
