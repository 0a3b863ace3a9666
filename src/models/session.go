package models

// MStreamerTokenData carries the short-lived credentials for the market-data
// feed, as returned by the brokerage's api-quote-tokens endpoint. The token
// is opaque and expires server-side; it is re-fetched on every connect.
type MStreamerTokenData struct {
	Token     string `json:"token"`
	DXLinkURL string `json:"dxlink-url"`
	Level     string `json:"level"`
}

// MSessionData is the payload of a successful POST /sessions.
type MSessionData struct {
	SessionToken  string `json:"session-token"`
	RememberToken string `json:"remember-token"`
}

// API responses arrive wrapped in a data envelope.
type MSessionResponse struct {
	Data MSessionData `json:"data"`
}

type MStreamerTokenResponse struct {
	Data MStreamerTokenData `json:"data"`
}

// MLoginRequest is the body of POST /sessions. Password and remember token
// are mutually exclusive.
type MLoginRequest struct {
	Login         string `json:"login"`
	Password      string `json:"password,omitempty"`
	RememberMe    bool   `json:"remember-me"`
	RememberToken string `json:"remember-token,omitempty"`
}
