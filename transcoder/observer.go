package transcoder

// Outcome describes how a session's reader finished.
type Outcome string

const (
	OutcomeEndOfStream  Outcome = "end_of_stream"
	OutcomeSpawnFailure Outcome = "spawn_failure"
	OutcomeReadFault    Outcome = "read_fault"
	OutcomeCancelled    Outcome = "cancelled"
	OutcomePanic        Outcome = "panic"
)

// Observer receives session lifecycle events, typically to record metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveStart(source string)
	ObserveChunk(bytes int)
	ObserveDrop()
	ObserveFinish(source string, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveStart(string)           {}
func (nopObserver) ObserveChunk(int)              {}
func (nopObserver) ObserveDrop()                  {}
func (nopObserver) ObserveFinish(string, Outcome) {}
