// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relay

import "testing"

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	topics := NewTopicRegistry()
	b := NewBroadcaster(topics)

	a := NewSubscriber(1, 4)
	c := NewSubscriber(2, 4)
	b.Add(a)
	b.Add(c)
	topics.Subscribe("trades", 1)
	topics.Subscribe("trades", 2)

	delivered, dropped := b.Publish("trades", []byte("frame"))
	if delivered != 2 || dropped != 0 {
		t.Fatalf("delivered=%d dropped=%d, want 2/0", delivered, dropped)
	}
	if len(a.Frames()) != 1 || len(c.Frames()) != 1 {
		t.Fatal("expected one frame queued per subscriber")
	}
}

func TestBroadcastDropsOnFullMailboxWithoutBlocking(t *testing.T) {
	topics := NewTopicRegistry()
	b := NewBroadcaster(topics)

	slow := NewSubscriber(1, 1)
	b.Add(slow)
	topics.Subscribe("trades", 1)

	b.Publish("trades", []byte("one"))
	delivered, dropped := b.Publish("trades", []byte("two"))
	if delivered != 0 || dropped != 1 {
		t.Fatalf("delivered=%d dropped=%d, want 0/1", delivered, dropped)
	}
	if slow.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", slow.Dropped())
	}
}

func TestRemoveClosesSubscriberMailbox(t *testing.T) {
	topics := NewTopicRegistry()
	b := NewBroadcaster(topics)
	sub := NewSubscriber(1, 4)
	b.Add(sub)
	topics.Subscribe("trades", 1)

	b.Remove(1)

	if _, ok := <-sub.Frames(); ok {
		t.Fatal("expected closed, empty channel after Remove")
	}
	delivered, dropped := b.Publish("trades", []byte("x"))
	if delivered != 0 || dropped != 0 {
		t.Fatalf("publish after remove should be a no-op, got delivered=%d dropped=%d", delivered, dropped)
	}
}
