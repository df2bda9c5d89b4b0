package application

// Speaker queues text for playback without blocking the caller.
type Speaker interface {
	Enqueue(text string)
}

type NoopSpeaker struct{}

func (n *NoopSpeaker) Enqueue(_ string) {}
