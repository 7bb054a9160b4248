package types

// OKReply and ErrorReply are the two bus-level reply payloads for
// request/reply control topics (§6 operator register-update JSON).
type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
