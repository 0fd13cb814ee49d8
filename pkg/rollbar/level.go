package rollbar

// Level is the severity attached to an item. Values are sent verbatim.
type Level string

const (
	Critical Level = "critical"
	Error    Level = "error"
	Warning  Level = "warning"
	Info     Level = "info"
	Debug    Level = "debug"
)

func (l Level) String() string {
	return string(l)
}
