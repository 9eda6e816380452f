package main

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRecentNotifications(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	alice, bob := "alice", "bob"

	mustSend := func(msg string, user *string, global bool, at time.Time) {
		t.Helper()
		if err := sendToast(db, msg, NotifyInfo, user, global, at); err != nil {
			t.Fatal(err)
		}
	}
	mustSend("for alice", &alice, false, now.Add(-5*time.Second))
	mustSend("for bob", &bob, false, now.Add(-5*time.Second))
	mustSend("everyone", nil, true, now.Add(-10*time.Second))
	mustSend("stale", &alice, false, now.Add(-31*time.Second))
	mustSend("ancient", nil, true, now.Add(-10*time.Minute))

	tests := []struct {
		user string
		want []string
	}{
		{"alice", []string{"for alice", "everyone"}},
		{"bob", []string{"for bob", "everyone"}},
		{"", []string{"everyone"}},
	}
	for _, tt := range tests {
		got, err := RecentNotifications(db, tt.user, now)
		if err != nil {
			t.Fatal(err)
		}
		var msgs []string
		for _, n := range got {
			msgs = append(msgs, n.Message)
		}
		if len(msgs) != len(tt.want) || msgs[0] != tt.want[0] {
			t.Errorf("recent(%q) = %v, want %v", tt.user, msgs, tt.want)
		}
	}

	n, err := ClearOldNotifications(db, now)
	if err != nil || n != 1 {
		t.Errorf("ClearOldNotifications() = %d, %v; want 1", n, err)
	}

	if err := sendToast(db, "x", "loud", nil, true, now); !errors.Is(err, ErrBadNotificationType) {
		t.Errorf("bad type error = %v", err)
	}
}

func TestNotificationRoutes(t *testing.T) {
	_, r := newTestApp(t)
	uid := newUser(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notifications", map[string]any{
		"message": "Maintenance at noon", "type": "warning", "isGlobal": true,
	}, as(uid))
	if w.Code != http.StatusCreated {
		t.Fatalf("send = %d: %s", w.Code, w.Body)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/notifications", map[string]any{
		"message": "hi", "type": "shout",
	}, as(uid))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad type = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/notifications", map[string]any{
		"message": "Just you", "type": "info", "userId": uid,
	}, as(uid))
	if w.Code != http.StatusCreated {
		t.Fatalf("send personal = %d", w.Code)
	}

	recent := decode[[]Notification](t, doJSON(t, r, http.MethodGet, "/api/v1/notifications/recent", nil, as(uid)))
	if len(recent) != 2 {
		t.Errorf("recent = %d, want 2", len(recent))
	}
	global := decode[[]Notification](t, doJSON(t, r, http.MethodGet, "/api/v1/notifications/recent?scope=global", nil, as(uid)))
	if len(global) != 1 || !global[0].IsGlobal || global[0].TriggeredBy != notificationSource {
		t.Errorf("global = %+v", global)
	}
	mine := decode[[]Notification](t, doJSON(t, r, http.MethodGet, "/api/v1/notifications", nil, as(uid)))
	if len(mine) != 1 || mine[0].Message != "Just you" {
		t.Errorf("mine = %+v", mine)
	}
}
