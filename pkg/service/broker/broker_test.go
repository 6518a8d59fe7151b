// Periphctl
// Copyright (c) 2026 The Periphctl Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Periphctl.
//
// Periphctl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Periphctl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Periphctl.  If not, see <http://www.gnu.org/licenses/>.

package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitDone(t *testing.T, b *Broker) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("broker did not shut down")
	}
}

func TestNewBroker(t *testing.T) {
	t.Parallel()

	broker := NewBroker(context.Background(), make(chan models.Notification))

	assert.NotNil(t, broker.subscribers)
	assert.Equal(t, 0, broker.nextID)
}

func TestBroker_Subscribe(t *testing.T) {
	t.Parallel()

	broker := NewBroker(context.Background(), make(chan models.Notification))

	ch, id := broker.Subscribe(10)
	assert.NotNil(t, ch)
	assert.Equal(t, 0, id)

	_, id2 := broker.Subscribe(20, models.NotificationDisplayPower)
	assert.Equal(t, 1, id2)
	assert.Len(t, broker.subscribers, 2)
}

func TestBroker_Unsubscribe(t *testing.T) {
	t.Parallel()

	broker := NewBroker(context.Background(), make(chan models.Notification))
	ch, id := broker.Subscribe(10)

	broker.Unsubscribe(id)
	assert.Empty(t, broker.subscribers)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// second call is a no-op
	broker.Unsubscribe(id)
}

func TestBroker_BroadcastToMultipleSubscribers(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 10)
	broker := NewBroker(context.Background(), source)
	broker.Start()

	sub1, _ := broker.Subscribe(10)
	sub2, _ := broker.Subscribe(10)

	notif := models.Notification{
		Method: models.NotificationDisplayPower,
		Params: []byte(`{"display":1}`),
	}
	source <- notif

	assert.Equal(t, notif, <-sub1)
	assert.Equal(t, notif, <-sub2)
}

func TestBroker_MethodFilter(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 10)
	broker := NewBroker(context.Background(), source)
	broker.Start()

	deferred, _ := broker.Subscribe(10, models.NotificationDisplayDeferred)
	all, _ := broker.Subscribe(10)

	source <- models.Notification{Method: models.NotificationDisplayCommitted}
	source <- models.Notification{Method: models.NotificationDisplayDeferred}

	assert.Equal(t, models.NotificationDisplayCommitted, (<-all).Method)
	assert.Equal(t, models.NotificationDisplayDeferred, (<-all).Method)
	assert.Equal(t, models.NotificationDisplayDeferred, (<-deferred).Method)
	assert.Empty(t, deferred)
}

func TestBroker_NonBlockingSendDropsWhenFull(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	broker := NewBroker(context.Background(), source)
	subscriber, _ := broker.Subscribe(2)
	broker.Start()

	for range 10 {
		source <- models.Notification{Method: models.NotificationDisplayCommitted}
	}
	close(source)
	waitDone(t, broker)

	received := 0
	for range subscriber {
		received++
	}
	assert.Equal(t, 2, received, "excess notifications are dropped")
}

func TestBroker_SubscriberReceivesInOrder(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	broker := NewBroker(context.Background(), source)
	subscriber, _ := broker.Subscribe(100)
	broker.Start()

	methods := []string{
		models.NotificationDisplayAdded,
		models.NotificationDisplayPower,
		models.NotificationDisplayCommitted,
		models.NotificationDisplaySecure,
		models.NotificationDisplayRemoved,
	}
	for _, method := range methods {
		source <- models.Notification{Method: method}
	}

	for i, expected := range methods {
		notif := <-subscriber
		assert.Equal(t, expected, notif.Method, "notification %d should maintain order", i)
	}
}

func TestBroker_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	broker := NewBroker(context.Background(), source)
	broker.Start()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, id := broker.Subscribe(5)
			time.Sleep(5 * time.Millisecond)
			broker.Unsubscribe(id)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 20 {
			source <- models.Notification{Method: models.NotificationDisplayCommitted}
		}
	}()

	wg.Wait()
	close(source)
	waitDone(t, broker)
}

// The shutdown tests are not parallel so goleak only sees this broker.
func TestBroker_ContextCancellationStopsBroker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	broker := NewBroker(ctx, make(chan models.Notification))
	subscriber, _ := broker.Subscribe(10)
	broker.Start()

	cancel()
	waitDone(t, broker)

	_, ok := <-subscriber
	assert.False(t, ok, "subscriber channel should be closed on context cancellation")
}

func TestBroker_SourceChannelClosureStopsBroker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	source := make(chan models.Notification, 10)
	broker := NewBroker(context.Background(), source)
	subscriber, _ := broker.Subscribe(10)
	broker.Start()

	source <- models.Notification{Method: models.NotificationDisplayPower}
	close(source)
	waitDone(t, broker)

	notif, ok := <-subscriber
	require.True(t, ok)
	assert.Equal(t, models.NotificationDisplayPower, notif.Method)
	_, ok = <-subscriber
	assert.False(t, ok, "subscriber channel should be closed when source closes")
}
