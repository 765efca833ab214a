package nanny

// Events emitted by a Manager.
const (
	EventStart       = "start"
	EventStop        = "stop"
	EventUpdate      = "update"
	EventUpdateReady = "updateready"
	EventError       = "error"
	EventObsolete    = "obsolete"
	EventNoUpdate    = "noupdate"
	EventCached      = "cached"
	EventProgress    = "progress"
	EventDownloading = "downloading"
	EventOnline      = "online"
	EventOffline     = "offline"
)

// InitPrefix is prepended to success-path events during the first download.
const InitPrefix = "init:"

var successEvents = []string{
	EventNoUpdate,
	EventCached,
	EventUpdateReady,
	EventProgress,
	EventDownloading,
}

// EventTypes returns every event type a Manager can emit.
func EventTypes() []string {
	types := []string{
		EventStart,
		EventStop,
		EventUpdate,
		EventUpdateReady,
		EventError,
		EventObsolete,
		EventNoUpdate,
		EventCached,
		EventProgress,
		EventDownloading,
		EventOnline,
		EventOffline,
	}
	for _, e := range successEvents {
		types = append(types, InitPrefix+e)
	}
	return types
}
