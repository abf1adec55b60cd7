package server

import (
	"encoding/json"
	"testing"

	"github.com/storypath/checkin/internal/checkin"
)

func TestBrokerScopesBySession(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("a")
	other := b.Subscribe("b")
	defer b.Unsubscribe("a", a)
	defer b.Unsubscribe("b", other)

	b.Notifier("a").Notify(checkin.Notification{Kind: checkin.KindAlert, Title: "Error"})

	select {
	case data := <-a:
		var n checkin.Notification
		json.Unmarshal(data, &n)
		if n.Kind != checkin.KindAlert {
			t.Errorf("kind = %q", n.Kind)
		}
	default:
		t.Fatal("subscriber a got nothing")
	}

	select {
	case data := <-other:
		t.Fatalf("subscriber b got %s", data)
	default:
	}
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s")
	defer b.Unsubscribe("s", ch)

	for i := 0; i < cap(ch)+5; i++ {
		b.Publish("s", checkin.Notification{Kind: checkin.KindAlert})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d, want %d", len(ch), cap(ch))
	}
}
