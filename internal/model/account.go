package model

import "time"

// Account is one record of sessions/accounts.json. SessionName doubles as the
// base name of the MTProto session file in the workdir.
type Account struct {
	ID          string    `json:"id,omitempty"`
	SessionName string    `json:"session_name"`
	UserAgent   string    `json:"user_agent"`
	Proxy       string    `json:"proxy,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// SessionFile is the account label used in logs and reports.
func (a Account) SessionFile() string {
	return a.SessionName + ".session"
}

// Snapshot is one entry of the shared output log, written after every
// waitlist fetch. The log is append-only across runs and accounts.
type Snapshot struct {
	Account        string `json:"account"`
	UserID         string `json:"user_id"`
	Nickname       string `json:"nickname"`
	InviteCode     string `json:"invite_code"`
	WaitlistStatus string `json:"waitlist_status"`
	Reward         any    `json:"reward"`
}
