// Package context carries the metadata of an inbound API request through the call chain.
package context

import "context"

type requestKey struct{}

// Request is attached to every API request context by the Context middleware
type Request struct {
	ID       string
	Method   string
	Route    string
	RemoteIP string
	// Caller names the upstream system, taken from the X-Caller header
	Caller string
}

// WithRequest returns a copy of ctx carrying r
func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFrom returns the request metadata, or the zero Request outside an API call
func RequestFrom(ctx context.Context) Request {
	r, _ := ctx.Value(requestKey{}).(Request)
	return r
}

func GetRequestID(ctx context.Context) string {
	return RequestFrom(ctx).ID
}

func GetCaller(ctx context.Context) string {
	return RequestFrom(ctx).Caller
}

// Fields returns the non-empty request metadata as log fields
func Fields(ctx context.Context) map[string]any {
	r := RequestFrom(ctx)
	fields := make(map[string]any, 5)
	for k, v := range map[string]string{
		"request_id": r.ID,
		"method":     r.Method,
		"route":      r.Route,
		"remote_ip":  r.RemoteIP,
		"caller":     r.Caller,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
