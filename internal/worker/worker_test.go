// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"codeberg.org/oliverandrich/guestgate/internal/testutil"
	"codeberg.org/oliverandrich/guestgate/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSender fails sends to addresses listed in failFor.
type stubSender struct {
	connected bool
	failFor   map[string]error
	sent      []string
}

func (s *stubSender) Connected() bool { return s.connected }

func (s *stubSender) Send(_ context.Context, address, _ string) error {
	if err, ok := s.failFor[address]; ok {
		return err
	}
	s.sent = append(s.sent, address)
	return nil
}

func enqueue(t *testing.T, repo *repository.Repository, guestID int64, address string) *models.OutboxMessage {
	t.Helper()
	msg, err := repo.EnqueueOutbox(context.Background(), &models.OutboxMessage{
		GuestID: guestID,
		Channel: models.ChannelMessenger,
		Address: address,
		Message: "thank you",
	})
	require.NoError(t, err)
	return msg
}

func TestCycle_MixedResults(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	guest := testutil.NewTestGuest(t, repo, "G1", "0811")
	a := enqueue(t, repo, guest.ID, "0811")
	b := enqueue(t, repo, guest.ID, "0812")
	c := enqueue(t, repo, guest.ID, "0813")

	sender := &stubSender{
		connected: true,
		failFor:   map[string]error{"0812": errors.New("send timed out")},
	}
	w := worker.New(repo, map[string]worker.Sender{models.ChannelMessenger: sender})

	w.Cycle(context.Background())

	for _, tc := range []struct {
		id     int64
		status string
		retry  int64
	}{
		{a.ID, models.OutboxSent, 0},
		{b.ID, models.OutboxFailed, 1},
		{c.ID, models.OutboxSent, 0},
	} {
		msg, err := repo.GetOutboxByID(context.Background(), tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.status, msg.Status, "entry %d", tc.id)
		assert.Equal(t, tc.retry, msg.RetryCount, "entry %d", tc.id)
	}

	failed, err := repo.GetOutboxByID(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "send timed out", *failed.ErrorMessage)
}

func TestCycle_FailedEntriesAreNotRetried(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	guest := testutil.NewTestGuest(t, repo, "G1", "0811")
	msg := enqueue(t, repo, guest.ID, "0812")

	sender := &stubSender{
		connected: true,
		failFor:   map[string]error{"0812": errors.New("rejected")},
	}
	w := worker.New(repo, map[string]worker.Sender{models.ChannelMessenger: sender})

	w.Cycle(context.Background())
	w.Cycle(context.Background())
	w.Cycle(context.Background())

	got, err := repo.GetOutboxByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxFailed, got.Status)
	assert.Equal(t, int64(1), got.RetryCount, "worker must not auto-retry failed entries")
}

func TestCycle_RequeuedEntryIsPickedUpAgain(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	guest := testutil.NewTestGuest(t, repo, "G1", "0811")
	msg := enqueue(t, repo, guest.ID, "0812")

	sender := &stubSender{
		connected: true,
		failFor:   map[string]error{"0812": errors.New("rejected")},
	}
	w := worker.New(repo, map[string]worker.Sender{models.ChannelMessenger: sender})
	w.Cycle(context.Background())

	// Operator resolves the issue and requeues explicitly.
	delete(sender.failFor, "0812")
	_, err := repo.RequeueOutbox(context.Background(), msg.ID)
	require.NoError(t, err)

	w.Cycle(context.Background())

	got, err := repo.GetOutboxByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxSent, got.Status)
}

func TestCycle_DisconnectedChannelDefers(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	guest := testutil.NewTestGuest(t, repo, "G1", "0811")
	enqueue(t, repo, guest.ID, "0811")
	enqueue(t, repo, guest.ID, "0812")

	sender := &stubSender{connected: false}
	w := worker.New(repo, map[string]worker.Sender{models.ChannelMessenger: sender})

	w.Cycle(context.Background())

	// No status transitions: everything stays pending.
	pending, err := repo.LeasePendingOutbox(context.Background(), models.ChannelMessenger, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Empty(t, sender.sent)
}

func TestCycle_SentEntriesAreNeverLeasedAgain(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	guest := testutil.NewTestGuest(t, repo, "G1", "0811")
	enqueue(t, repo, guest.ID, "0811")

	sender := &stubSender{connected: true}
	w := worker.New(repo, map[string]worker.Sender{models.ChannelMessenger: sender})
	w.Cycle(context.Background())
	w.Cycle(context.Background())

	assert.Len(t, sender.sent, 1)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	sender := &stubSender{connected: true}
	w := worker.New(repo, map[string]worker.Sender{models.ChannelMessenger: sender},
		worker.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestLeaseOrderingAndLimit(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	guest := testutil.NewTestGuest(t, repo, "G1", "0811")

	var ids []int64
	for i := 0; i < 5; i++ {
		msg := enqueue(t, repo, guest.ID, "0811")
		ids = append(ids, msg.ID)
	}

	leased, err := repo.LeasePendingOutbox(context.Background(), models.ChannelMessenger, 3)
	require.NoError(t, err)
	require.Len(t, leased, 3)

	// Oldest first.
	for i, msg := range leased {
		assert.Equal(t, ids[i], msg.ID)
		assert.Equal(t, models.OutboxPending, msg.Status)
	}
}
