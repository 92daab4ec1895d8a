package notify

import "context"

// AccountResult is the outcome of one account's run.
type AccountResult struct {
	At         int64  `json:"atMs"`
	Account    string `json:"account"`
	Nickname   string `json:"nickname,omitempty"`
	Status     string `json:"status"`
	InviteCode string `json:"inviteCode,omitempty"`
	Reward     string `json:"reward,omitempty"`
	Err        string `json:"error,omitempty"`
}

type Notifier interface {
	NotifyAccountDone(ctx context.Context, res AccountResult)
	Close(ctx context.Context) error
}

type Noop struct{}

func (Noop) NotifyAccountDone(context.Context, AccountResult) {}
func (Noop) Close(context.Context) error                      { return nil }
