package ipc

// ServiceName is the registered RPC receiver name.
const ServiceName = "Daemon"

// PingArgs is empty; Ping proves the socket is live.
type PingArgs struct{}

// PingReply reports daemon identity.
type PingReply struct {
	PID     int
	Version string
}

// StatusArgs is empty.
type StatusArgs struct{}

// StageHealth mirrors a stage health probe across the wire.
type StageHealth struct {
	Name   string
	Ready  bool
	Detail string
}

// StatusReply is a point-in-time snapshot of the daemon.
type StatusReply struct {
	PID          int
	Version      string
	StartedAt    string
	QueueCounts  map[string]int
	StageHealths []StageHealth
}

// ShutdownArgs is empty.
type ShutdownArgs struct{}

// ShutdownReply acknowledges the request before the daemon exits.
type ShutdownReply struct {
	Acknowledged bool
}
