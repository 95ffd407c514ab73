package httpserver

import "net/http"

// Routes groups handlers. Nil handlers are not registered.
type Routes struct {
	QueueJoin     http.HandlerFunc
	QueueLeave    http.HandlerFunc
	QueueReserve  http.HandlerFunc
	QueueStart    http.HandlerFunc
	QueueComplete http.HandlerFunc
	QueueStatus   http.HandlerFunc
	QueueMe       http.HandlerFunc

	SessionStop    http.HandlerFunc
	SessionPause   http.HandlerFunc
	SessionResume  http.HandlerFunc
	SessionExtend  http.HandlerFunc
	SessionStatus  http.HandlerFunc
	SessionsMe     http.HandlerFunc
	ActiveSessions http.HandlerFunc

	StationQueue http.HandlerFunc
	Events       http.HandlerFunc
	Metrics      http.Handler
	Health       http.HandlerFunc
}

// NewRouter registers endpoints. Requester endpoints go through authenticated.
func NewRouter(routes Routes, authenticated func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	private := []struct {
		path    string
		method  string
		handler http.HandlerFunc
	}{
		{"/queue/join", http.MethodPost, routes.QueueJoin},
		{"/queue/leave", http.MethodPost, routes.QueueLeave},
		{"/queue/reserve", http.MethodPost, routes.QueueReserve},
		{"/queue/start", http.MethodPost, routes.QueueStart},
		{"/queue/complete", http.MethodPost, routes.QueueComplete},
		{"/queue/status", http.MethodGet, routes.QueueStatus},
		{"/queue/me", http.MethodGet, routes.QueueMe},
		{"/sessions/stop", http.MethodPost, routes.SessionStop},
		{"/sessions/pause", http.MethodPost, routes.SessionPause},
		{"/sessions/resume", http.MethodPost, routes.SessionResume},
		{"/sessions/extend", http.MethodPost, routes.SessionExtend},
		{"/sessions/status", http.MethodGet, routes.SessionStatus},
		{"/sessions/me", http.MethodGet, routes.SessionsMe},
	}
	for _, rt := range private {
		if rt.handler == nil {
			continue
		}
		mux.Handle(rt.path, authenticated(method(rt.method, rt.handler)))
	}

	if routes.ActiveSessions != nil {
		mux.Handle("/sessions/active", method(http.MethodGet, routes.ActiveSessions))
	}
	if routes.StationQueue != nil {
		mux.Handle("/stations/queue", method(http.MethodGet, routes.StationQueue))
	}
	if routes.Events != nil {
		mux.Handle("/ws", method(http.MethodGet, routes.Events))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", method(http.MethodGet, routes.Metrics.ServeHTTP))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
