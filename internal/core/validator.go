package core

// StreamKeyValidator is supplied by the surrounding platform to check that a
// stream key exists and has not been revoked. Broadcaster offers for a key
// the validator refuses are rejected before any track wiring happens.
type StreamKeyValidator func(key StreamKey) bool

// AllowAllKeys is the default validator for deployments without the
// platform's persistent store wired in.
func AllowAllKeys(_ StreamKey) bool { return true }
