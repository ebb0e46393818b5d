package orchestrator

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	Reports <-chan Report
	Errors  <-chan ErrorEvent
	Done    <-chan struct{}

	reportCh chan Report
	errorCh  chan ErrorEvent
	doneCh   chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		reportCh: make(chan Report, eventBufferSize),
		errorCh:  make(chan ErrorEvent, eventBufferSize),
		doneCh:   make(chan struct{}),
	}
	s.Reports = s.reportCh
	s.Errors = s.errorCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

// sendReport sends a tick report (non-blocking).
func (s *Subscription) sendReport(r Report) {
	select {
	case s.reportCh <- r:
	default:
		// Drop if buffer full
	}
}

// sendError sends an error event (non-blocking).
func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
