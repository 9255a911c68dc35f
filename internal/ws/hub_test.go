package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)

	hub.Subscribe("identity:id-1", client)
	hub.Publish("identity:id-1", []byte(`{"event":"loan_repaid"}`))

	select {
	case msg := <-client.out:
		if string(msg) != `{"event":"loan_repaid"}` {
			t.Fatalf("unexpected payload: %s", string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for message")
	}

	hub.UnsubscribeAll(client)
}

func TestSubscriptionTopic(t *testing.T) {
	assert.Equal(t, "identity:id-1", subscriptionTopic(subscribeMessage{Channel: "identity", IdentityID: "id-1"}, "id-1"))
	assert.Equal(t, "", subscriptionTopic(subscribeMessage{Channel: "identity", IdentityID: "id-1"}, "id-2"))
	assert.Equal(t, "", subscriptionTopic(subscribeMessage{Channel: "identity", IdentityID: "id-1"}, ""))
	assert.Equal(t, "issuer:id-1", subscriptionTopic(subscribeMessage{Channel: "Issuer", IdentityID: "id-1"}, ""))
	assert.Equal(t, "", subscriptionTopic(subscribeMessage{Channel: "pool:repayments", IdentityID: "id-1"}, ""))
	assert.Equal(t, "", subscriptionTopic(subscribeMessage{Channel: "issuer"}, ""))
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []Notification
	err   error
}

func (r *fakeNotificationRepo) ListNotificationsSince(_ context.Context, lastID int64, _ int32) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []Notification{}
	for _, item := range r.items {
		if item.ID > lastID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) LatestNotificationID(context.Context) (int64, error) {
	return 0, nil
}

func (r *fakeNotificationRepo) add(item Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *fakeNotificationRepo) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func TestNotifierFansOutToIdentityAndIssuer(t *testing.T) {
	hub := NewHub()
	owner := NewClient(nil)
	investor := NewClient(nil)
	hub.Subscribe(IdentityChannel("id-1"), owner)
	hub.Subscribe(IssuerChannel("id-1"), investor)

	repo := &fakeNotificationRepo{items: []Notification{
		{ID: 1, Topic: "loan_repaid", IdentityID: "id-1", Payload: []byte(`{"loan_id":"l-1"}`), CreatedAt: time.Now()},
		{ID: 2, Topic: "obligation_defaulted", IdentityID: "id-1", Payload: []byte(`{"flagged_obligation_ids":["o-1"]}`), CreatedAt: time.Now()},
	}}
	n := NewNotifier(repo, hub, time.Second, nil)
	require.NoError(t, n.tick(context.Background()))
	assert.Equal(t, int64(2), n.lastID)

	require.Len(t, owner.out, 2)
	require.Len(t, investor.out, 1)

	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-investor.out, &msg))
	assert.Equal(t, "obligation_defaulted", msg.Event)
	assert.JSONEq(t, `{"flagged_obligation_ids":["o-1"]}`, string(msg.Data))

	require.NoError(t, n.tick(context.Background()))
	assert.Len(t, owner.out, 2)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)
	hub.Subscribe(IssuerChannel("id-1"), client)
	hub.Subscribe(IssuerChannel("id-2"), client)
	assert.Equal(t, 1, hub.Subscribers(IssuerChannel("id-1")))

	hub.Unsubscribe(IssuerChannel("id-1"), client)
	hub.Publish(IssuerChannel("id-1"), []byte(`{}`))
	assert.Zero(t, hub.Subscribers(IssuerChannel("id-1")))
	assert.Empty(t, client.out)

	hub.UnsubscribeAll(client)
	assert.Zero(t, hub.Subscribers(IssuerChannel("id-2")))
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil)
	hub.Subscribe(IdentityChannel("id-1"), client)

	for range clientBuffer + 1 {
		hub.Publish(IdentityChannel("id-1"), []byte(`{}`))
	}
	hub.Publish(IdentityChannel("id-1"), []byte(`{}`))

	received := 0
	for range client.out {
		received++
	}
	assert.Equal(t, clientBuffer, received)
}

func TestNotifierWaitsForLateCommittedRows(t *testing.T) {
	hub := NewHub()
	owner := NewClient(nil)
	hub.Subscribe(IdentityChannel("id-1"), owner)

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRepo{items: []Notification{
		{ID: 1, Topic: "loan_disbursed", IdentityID: "id-1", Payload: []byte(`{}`)},
		{ID: 3, Topic: "loan_repaid", IdentityID: "id-1", Payload: []byte(`{}`)},
	}}
	n := NewNotifier(repo, hub, time.Second, nil)
	n.now = func() time.Time { return now }

	require.NoError(t, n.tick(context.Background()))
	assert.Equal(t, int64(1), n.lastID)
	assert.Len(t, owner.out, 2)

	repo.add(Notification{ID: 2, Topic: "loan_disbursed", IdentityID: "id-1", Payload: []byte(`{}`)})
	require.NoError(t, n.tick(context.Background()))
	assert.Equal(t, int64(3), n.lastID)
	assert.Len(t, owner.out, 3)
	assert.Empty(t, n.delivered)
}

func TestNotifierSkipsGapAfterGrace(t *testing.T) {
	hub := NewHub()
	owner := NewClient(nil)
	hub.Subscribe(IdentityChannel("id-1"), owner)

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRepo{items: []Notification{
		{ID: 2, Topic: "loan_repaid", IdentityID: "id-1", Payload: []byte(`{}`)},
	}}
	n := NewNotifier(repo, hub, time.Second, nil)
	n.now = func() time.Time { return now }

	require.NoError(t, n.tick(context.Background()))
	assert.Equal(t, int64(0), n.lastID)

	now = now.Add(n.gapGrace)
	require.NoError(t, n.tick(context.Background()))
	assert.Equal(t, int64(2), n.lastID)
	assert.Len(t, owner.out, 1)
}

func TestNotifierRunSurvivesPollErrors(t *testing.T) {
	hub := NewHub()
	owner := NewClient(nil)
	hub.Subscribe(IdentityChannel("id-1"), owner)

	repo := &fakeNotificationRepo{err: errors.New("connection reset")}
	n := NewNotifier(repo, hub, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	repo.add(Notification{ID: 1, Topic: "loan_repaid", IdentityID: "id-1", Payload: []byte(`{}`)})
	repo.setErr(nil)

	select {
	case msg := <-owner.out:
		assert.Contains(t, string(msg), "loan_repaid")
	case <-time.After(2 * time.Second):
		t.Fatal("notifier stopped after a failed poll")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
