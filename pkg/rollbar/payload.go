package rollbar

const (
	NotifierName    = "go-rollbar"
	NotifierVersion = "0.1.0"

	Endpoint = "https://api.rollbar.com/api/1/item/"
)

// Payload is the request body posted to Endpoint.
type Payload struct {
	AccessToken string `json:"access_token"`
	Data        Data   `json:"data"`
}

type Data struct {
	Environment string       `json:"environment"`
	Body        Body         `json:"body"`
	Platform    string       `json:"platform"`
	Title       string       `json:"title"`
	Timestamp   int64        `json:"timestamp"`
	Level       Level        `json:"level"`
	CodeVersion string       `json:"code_version,omitempty"`
	Notifier    NotifierInfo `json:"notifier"`
	Context     string       `json:"context,omitempty"`
}

// Body holds the message object. It is a plain map so custom keys sit next to
// "body" and may replace it.
type Body struct {
	Message map[string]any `json:"message"`
}

type NotifierInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func newMessage(text string, custom map[string]any) map[string]any {
	msg := make(map[string]any, len(custom)+1)
	msg["body"] = text
	// TODO: report a conflict instead of letting a custom "body" key replace the text.
	for k, v := range custom {
		msg[k] = v
	}
	return msg
}
