// A stateful local stand-in for the game API, for poking at the farm without
// touching the real backend. Join moves the waitlist to pending, claim to
// completed, and each task's first completion attempt answers 400 to exercise
// the retry path.
package main

import (
	crand "crypto/rand"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sync"
	"time"
)

type waitlist struct {
	mu       sync.Mutex
	status   string
	tasks    map[string]bool
	attempts map[string]int
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	wl := &waitlist{
		status: "not-joined",
		tasks: map[string]bool{
			"followTwitter":              false,
			"followAnnouncementsChannel": false,
		},
		attempts: make(map[string]int),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/v2/auth/user/telegram-auth-v2", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if raw, _ := body["initDataRaw"].(string); raw == "" {
			http.Error(w, `{"error":"initDataRaw is required"}`, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jwtToken":  "mock_jwt_" + randString(16),
			"userId":    "mock_user_" + randString(8),
			"nickname":  "penguin_" + randString(5),
			"avatarUrl": "https://example.invalid/avatar/" + randString(6) + ".png",
		})
	})

	mux.HandleFunc("/api/waitlist", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wl.mu.Lock()
		defer wl.mu.Unlock()

		tasks := make([]map[string]any, 0, len(wl.tasks))
		for name, done := range wl.tasks {
			progress := map[string]any{}
			if done {
				progress["completed"] = time.Now().Format(time.RFC3339)
			}
			tasks = append(tasks, map[string]any{"type": name, "progress": progress})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     wl.status,
			"inviteCode": "mock-" + randString(6),
			"reward":     1000,
			"tasks":      tasks,
		})
	})

	mux.HandleFunc("/api/waitlist/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wl.mu.Lock()
		defer wl.mu.Unlock()
		if wl.status != "not-joined" {
			http.Error(w, `{"error":"already joined"}`, http.StatusBadRequest)
			return
		}
		wl.status = "pending"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/waitlist/claim", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wl.mu.Lock()
		defer wl.mu.Unlock()
		if wl.status != "pending" {
			http.Error(w, `{"error":"nothing to claim"}`, http.StatusBadRequest)
			return
		}
		wl.status = "completed"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	completeTask := func(taskName string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			wl.mu.Lock()
			defer wl.mu.Unlock()

			wl.attempts[taskName]++
			// First attempt looks like the real backend before its task
			// state settles.
			if wl.attempts[taskName] == 1 {
				http.Error(w, `{"error":"task state not settled"}`, http.StatusBadRequest)
				return
			}
			wl.tasks[taskName] = true
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}
	mux.HandleFunc("/api/waitlist/complete/twitter", completeTask("followTwitter"))
	mux.HandleFunc("/api/waitlist/complete/telegram", completeTask("followAnnouncementsChannel"))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("mock listening on %s", *addr)
	log.Fatal(srv.ListenAndServe())
}

func randString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	if n <= 0 {
		return ""
	}
	raw := make([]byte, n)
	_, _ = crand.Read(raw)
	out := make([]byte, n)
	for i := range out {
		out[i] = letters[int(raw[i])%len(letters)]
	}
	return string(out)
}
