package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/ferryq/internal/alias"
)

func TestTarget_Forward_Publishes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	target := NewWithClient(Config{Channel: "test-channel"}, client)

	sub := client.Subscribe(context.Background(), "test-channel")
	defer func() { _ = sub.Close() }()
	msgCh := sub.Channel()

	item := &alias.ForwardedItem{AliasName: "fanout_topic", Data: []byte("payload"), AddedAtMs: 123}
	if err := target.Forward(context.Background(), item); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	select {
	case msg := <-msgCh:
		var got alias.ForwardedItem
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal published payload: %v", err)
		}
		if got.AliasName != "fanout_topic" || string(got.Data) != "payload" {
			t.Errorf("unexpected published item: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing address")
	}
}
