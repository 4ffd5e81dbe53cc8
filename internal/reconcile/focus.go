package reconcile

import "time"

// FocusSource signals moments when global-scope state may have changed
// behind our back (the user switched from another tool that writes to the
// shared global directories). Host environments with real focus events can
// adapt them onto this interface; the default is a plain poll ticker.
type FocusSource interface {
	// Events yields one value per focus transition.
	Events() <-chan struct{}
	// Close stops the source and closes the Events channel.
	Close()
}

// tickerFocusSource emits on a fixed interval.
type tickerFocusSource struct {
	ticker *time.Ticker
	out    chan struct{}
	stop   chan struct{}
}

// NewTickerFocusSource creates a FocusSource that fires every interval.
func NewTickerFocusSource(interval time.Duration) FocusSource {
	s := &tickerFocusSource{
		ticker: time.NewTicker(interval),
		out:    make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *tickerFocusSource) run() {
	defer close(s.out)
	for {
		select {
		case <-s.ticker.C:
			select {
			case s.out <- struct{}{}:
			default:
			}
		case <-s.stop:
			return
		}
	}
}

func (s *tickerFocusSource) Events() <-chan struct{} { return s.out }

func (s *tickerFocusSource) Close() {
	s.ticker.Stop()
	close(s.stop)
}
