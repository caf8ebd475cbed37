package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const subjectKey contextKey = "subject"

// SetSubject records who is making the request. Rate limits are counted per subject.
func SetSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// GetSubject returns the subject set by Authenticate.
func GetSubject(r *http.Request) (string, bool) {
	subject, ok := r.Context().Value(subjectKey).(string)
	return subject, ok && subject != ""
}

// clientSubject identifies an anonymous caller by remote address.
func clientSubject(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
