// Package game talks to the waitlist backend: token exchange, waitlist
// join/claim, and social-follow task completion. Every method guards its own
// remote call; nothing here panics through to the orchestrator.
package game

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pengu_farm/internal/config"
	"pengu_farm/internal/model"
	"pengu_farm/internal/outlog"
	"pengu_farm/internal/utils"
)

type State int

const (
	LoggedOut State = iota
	Authenticated
	Failed
)

var ErrMalformedResponse = errors.New("game: expected field missing in response")

// StatusError is a non-200 answer from the game API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("game: HTTP %d: %s", e.Code, e.Body)
}

// AuthContext is what a successful login yields; held in memory for the
// lifetime of one account run.
type AuthContext struct {
	Token     string
	UserID    string
	Nickname  string
	AvatarURL string
}

type Client struct {
	cfg    config.GameConfig
	acc    model.Account
	out    *outlog.Log
	logger *zap.Logger

	http  *resty.Client
	state State
	auth  AuthContext
}

func New(cfg config.GameConfig, proxyCfg config.ProxyConfig, acc model.Account, out *outlog.Log, logger *zap.Logger) *Client {
	c := &Client{
		cfg:    cfg,
		acc:    acc,
		out:    out,
		logger: logger,
		state:  LoggedOut,
	}
	c.http = c.newHTTP(proxyCfg)
	return c
}

func (c *Client) newHTTP(proxyCfg config.ProxyConfig) *resty.Client {
	client := resty.New().
		SetBaseURL(c.cfg.BaseURL).
		SetTimeout(c.cfg.Timeout()).
		SetHeaders(map[string]string{
			"accept":          "application/json, text/plain, */*",
			"accept-language": "en-US,en;q=0.9",
			"content-type":    "application/json",
			"origin":          c.cfg.BaseURL,
			"referer":         c.cfg.BaseURL + "/",
			"user-agent":      utils.NormalizeUserAgent(c.acc.UserAgent),
		})

	if !c.cfg.VerifyTLS {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	proxy := c.acc.Proxy
	if proxy == "" {
		proxy = proxyCfg.Global
	}
	if proxy != "" {
		if p, err := utils.ParseProxy(proxy); err != nil {
			// Never fall back silently; the operator sees which account
			// is running without its proxy.
			c.logger.Warn("invalid proxy, continuing without one", zap.String("proxy", proxy))
		} else {
			client.SetProxy(p.String())
		}
	}
	return client
}

// Close releases the HTTP transport. Safe to call on every exit path.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

func (c *Client) State() State { return c.state }

func (c *Client) Auth() AuthContext { return c.auth }

type loginRequest struct {
	TypedData      string `json:"typedData"`
	InitDataRaw    string `json:"initDataRaw"`
	InvitationCode string `json:"invitationCode"`
	GameID         string `json:"gameId"`
}

type loginResponse struct {
	JwtToken  string `json:"jwtToken"`
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// Login exchanges init data for a bearer token. On success the token is
// installed on the client's default headers and the state becomes
// Authenticated; anything else lands in Failed with a reason.
func (c *Client) Login(ctx context.Context, initData string) (AuthContext, error) {
	typed, _ := json.Marshal(map[string]string{
		"id":   c.cfg.GameID,
		"name": c.cfg.GameName,
	})

	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(loginRequest{
			TypedData:      string(typed),
			InitDataRaw:    initData,
			InvitationCode: c.cfg.InvitationCode,
			GameID:         c.cfg.GameID,
		}).
		SetResult(&out).
		Post(c.cfg.AuthURL)
	if err != nil {
		c.state = Failed
		return AuthContext{}, err
	}
	if resp.StatusCode() != 200 {
		c.state = Failed
		return AuthContext{}, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	if out.JwtToken == "" {
		c.state = Failed
		return AuthContext{}, fmt.Errorf("%w: jwtToken", ErrMalformedResponse)
	}

	c.auth = AuthContext{
		Token:     out.JwtToken,
		UserID:    out.UserID,
		Nickname:  out.Nickname,
		AvatarURL: out.AvatarURL,
	}
	c.http.SetAuthToken(out.JwtToken)
	c.state = Authenticated
	c.logger.Info("login successful",
		zap.String("user_id", c.auth.UserID),
		zap.String("nickname", c.auth.Nickname))
	return c.auth, nil
}

// CheckWaitlist maps any fault or non-200 to WaitlistUnknown; it never fails
// the account.
func (c *Client) CheckWaitlist(ctx context.Context) model.WaitlistStatus {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/waitlist")
	if err != nil {
		c.logger.Error("waitlist check error", zap.Error(err))
		return model.WaitlistUnknown
	}
	if resp.StatusCode() != 200 {
		c.logger.Error("waitlist check failed",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return model.WaitlistUnknown
	}
	return model.ParseWaitlistStatus(out.Status)
}

type joinRequest struct {
	ElympicsAvatarURL string `json:"elympicsAvatarUrl"`
	ElympicsNickname  string `json:"elympicsNickname"`
	TelegramNickname  string `json:"telegramNickname"`
	TelegramUserID    string `json:"telegramUserId"`
	InvitationCode    string `json:"invitationCode"`
}

// JoinWaitlist is fire-and-forget: a failed join is logged and the remaining
// steps still run.
func (c *Client) JoinWaitlist(ctx context.Context) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(joinRequest{
			ElympicsAvatarURL: c.auth.AvatarURL,
			ElympicsNickname:  c.auth.Nickname,
			TelegramNickname:  c.auth.Nickname,
			TelegramUserID:    c.auth.UserID,
			InvitationCode:    c.cfg.InvitationCode,
		}).
		Post("/api/waitlist/join")
	if err != nil {
		c.logger.Error("join waitlist error", zap.Error(err))
		return
	}
	if resp.StatusCode() != 200 {
		c.logger.Error("failed to join waitlist",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return
	}
	c.logger.Info("joined waitlist")
}

// ClaimWaitlist has the same failure policy as JoinWaitlist.
func (c *Client) ClaimWaitlist(ctx context.Context) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		Post("/api/waitlist/claim")
	if err != nil {
		c.logger.Error("claim waitlist error", zap.Error(err))
		return
	}
	if resp.StatusCode() != 200 {
		c.logger.Error("failed to claim waitlist",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return
	}
	c.logger.Info("claimed waitlist")
}

// taskEndpoints maps waitlist task types to their completion endpoints.
var taskEndpoints = map[string]string{
	model.TaskFollowTwitter:       "/api/waitlist/complete/twitter",
	model.TaskFollowAnnouncements: "/api/waitlist/complete/telegram",
}

// CompleteTask posts to the task-specific completion endpoint, retrying up to
// the configured attempt count. A 400 means the server-side task state has
// not settled yet, so it sleeps the retry delay before the next attempt;
// other failures retry immediately. Success short-circuits.
func (c *Client) CompleteTask(ctx context.Context, taskType string) bool {
	endpoint, ok := taskEndpoints[taskType]
	if !ok {
		return false
	}
	attempts := c.cfg.Retry.Attempts()
	log := c.logger.With(zap.String("task", taskType))

	for attempt := 1; attempt <= attempts; attempt++ {
		log.Info("task attempt", zap.Int("attempt", attempt), zap.Int("of", attempts))
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]any{}).
			Post(endpoint)
		if err == nil && resp.StatusCode() == 200 {
			log.Info("task completed")
			return true
		}
		if err != nil {
			log.Error("task request error", zap.Error(err))
		} else {
			log.Error("task completion failed",
				zap.Int("status", resp.StatusCode()),
				zap.String("body", resp.String()))
		}
		if attempt == attempts {
			break
		}
		if err == nil && resp.StatusCode() == 400 {
			if !sleepCtx(ctx, c.cfg.Retry.Delay()) {
				return false
			}
		}
	}
	log.Error("task failed after all attempts", zap.Int("attempts", attempts))
	return false
}

// FetchSnapshot reads the waitlist resource, appends the account's snapshot
// to the shared output log, and returns the full state.
func (c *Client) FetchSnapshot(ctx context.Context) (model.WaitlistState, error) {
	var out model.WaitlistState
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/waitlist")
	if err != nil {
		return model.WaitlistState{}, err
	}
	if resp.StatusCode() != 200 {
		return model.WaitlistState{}, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}

	if c.out != nil {
		reward := out.Reward
		if reward == nil {
			reward = "unknown"
		}
		c.out.Append(model.Snapshot{
			Account:        c.acc.SessionFile(),
			UserID:         c.auth.UserID,
			Nickname:       c.auth.Nickname,
			InviteCode:     orUnknown(out.InviteCode),
			WaitlistStatus: string(model.ParseWaitlistStatus(out.Status)),
			Reward:         reward,
		})
	}
	return out, nil
}

// ProcessPendingTasks completes every task the waitlist still lists as open,
// then re-fetches so the final state lands in the output log. The refreshed
// state is returned for reporting.
func (c *Client) ProcessPendingTasks(ctx context.Context) (model.WaitlistState, bool) {
	state, err := c.FetchSnapshot(ctx)
	if err != nil {
		c.logger.Error("failed to fetch waitlist for task processing", zap.Error(err))
		return model.WaitlistState{}, false
	}

	for _, task := range state.Tasks {
		if task.Completed() {
			c.logger.Debug("task already completed", zap.String("task", task.Type))
			continue
		}
		if _, known := taskEndpoints[task.Type]; !known {
			c.logger.Debug("ignoring unknown task type", zap.String("task", task.Type))
			continue
		}
		c.CompleteTask(ctx, task.Type)
	}

	refreshed, err := c.FetchSnapshot(ctx)
	if err != nil {
		c.logger.Error("failed to refresh waitlist after tasks", zap.Error(err))
		return state, true
	}
	return refreshed, true
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
