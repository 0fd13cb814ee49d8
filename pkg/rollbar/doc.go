// Package rollbar reports severity-leveled messages to the Rollbar item API.
//
// A Notifier is built once per application and holds the access token, the
// environment label, an optional code version and the delivery mode:
//
//	n := rollbar.New(os.Getenv("ROLLBAR_ACCESS_TOKEN"),
//		rollbar.WithEnvironment("staging"),
//		rollbar.WithCodeVersion("1.4.2"),
//	)
//	defer n.Close()
//
//	n.Error(ctx, "payment declined", map[string]any{"order_id": 42})
//
// By default delivery is non-blocking: Notify returns a Response with
// Dispatched set and the request runs in the background, invoking the
// configured Callback when the outcome is known. WithBlocking makes Notify
// wait and return the API response instead.
//
// Transport failures never come back as errors. They are reported in
// Response.Err, either from Notify itself (blocking) or to the Callback
// (non-blocking). The only error Notify returns is a failure to encode the
// payload, which happens before anything is sent.
package rollbar
