package handlers

// PingResponse is the response for the protected ping endpoint.
type PingResponse struct {
	Body struct {
		Message string `doc:"Always pong" example:"pong" json:"message"`
	}
}

// StatsResponse is the response for the limiter stats endpoint.
type StatsResponse struct {
	Body struct {
		TrackedClients    int     `doc:"Clients currently holding limiter state" example:"42"  json:"trackedClients"`
		MaxRequests       int     `doc:"Requests allowed per window"             example:"100" json:"maxRequests"`
		WindowSizeSeconds float64 `doc:"Window length in seconds"                example:"60"  json:"windowSizeSeconds"`
	}
}
