package model

type WaitlistStatus string

const (
	WaitlistNotJoined WaitlistStatus = "not-joined"
	WaitlistPending   WaitlistStatus = "pending"
	WaitlistCompleted WaitlistStatus = "completed"
	WaitlistUnknown   WaitlistStatus = "unknown"
)

// ParseWaitlistStatus collapses anything the API might answer into one of the
// four known states.
func ParseWaitlistStatus(s string) WaitlistStatus {
	switch WaitlistStatus(s) {
	case WaitlistNotJoined, WaitlistPending, WaitlistCompleted:
		return WaitlistStatus(s)
	default:
		return WaitlistUnknown
	}
}

// Task types the waitlist currently hands out. Anything else is ignored.
const (
	TaskFollowTwitter       = "followTwitter"
	TaskFollowAnnouncements = "followAnnouncementsChannel"
)

type WaitlistTask struct {
	Type     string         `json:"type"`
	Progress map[string]any `json:"progress"`
}

// Completed reports whether the backend marked the task done; the API signals
// it by the presence of a "completed" key inside progress.
func (t WaitlistTask) Completed() bool {
	_, ok := t.Progress["completed"]
	return ok
}

// WaitlistState is the waitlist resource as returned by the game API.
type WaitlistState struct {
	Status     string         `json:"status"`
	InviteCode string         `json:"inviteCode"`
	Reward     any            `json:"reward"`
	Tasks      []WaitlistTask `json:"tasks"`
}
