package types

// LogType distinguishes a container's two persisted log streams: the
// runtime stream carries daemon/init lifecycle messages, the console
// stream carries the container's own stdout/stderr. Matches the
// teacher's types.LogType verbatim.
type LogType string

const (
	LogRuntime LogType = "runtime"
	LogConsole LogType = "console"
)
