package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit). Clients only send
	// handshakes, so this stays small.
	maxFrameBytes = 16 << 10 // 16 KiB

	// Max concurrent sessions for one username.
	maxSessionsPerUser = 16
)

const (
	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
)
