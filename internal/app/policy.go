package app

// BackpressureAction tells the channel adapter what to do with a chat client
// whose send buffer is full.
type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickClient
	DropEvent
)

type Policy interface {
	OnBackPressure() BackpressureAction
}

// SimplePolicy kicks slow clients: delivery is at-most-once best-effort, so
// a client that cannot keep up is disconnected rather than buffered for.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure() BackpressureAction {
	return KickClient
}
