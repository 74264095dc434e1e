package metrics

import "ws-live-server/transcoder"

// sessionObserver implements transcoder.Observer using the collectors
// declared in metrics.go.
type sessionObserver struct {
	m *Metrics
}

// SessionObserver returns an observer that records transcoder session
// events into m.
func (m *Metrics) SessionObserver() transcoder.Observer {
	return &sessionObserver{m: m}
}

func (o *sessionObserver) ObserveStart(string) {
	o.m.sessionsStarted.Inc()
	o.m.sessionsActive.Inc()
}

func (o *sessionObserver) ObserveChunk(bytes int) {
	o.m.chunksRead.Inc()
	o.m.bytesRead.Add(float64(bytes))
}

func (o *sessionObserver) ObserveDrop() {
	o.m.chunksDropped.Inc()
}

func (o *sessionObserver) ObserveFinish(_ string, outcome transcoder.Outcome) {
	o.m.sessionsActive.Dec()
	o.m.sessionsFinished.WithLabelValues(string(outcome)).Inc()
}
