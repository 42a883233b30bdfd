package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/model"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	f.channel, f.payload = channel, payload
	return f.err
}

type fakeInbox struct {
	items []model.Notification
}

func (f *fakeInbox) CreateBatch(_ context.Context, items []model.Notification) error {
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeInbox) ListByRecipient(context.Context, string, int, int) ([]model.Notification, int64, error) {
	return f.items, int64(len(f.items)), nil
}

func (f *fakeInbox) MarkRead(context.Context, string, string) error { return nil }

func TestPubSubNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewPubSubNotifier(pub, "chan")
	msg := Message{Type: model.NotifyRoleFull, Recipients: []string{"m1"}, EventID: "e1", Role: "Server", At: time.Now()}

	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if pub.channel != "chan" {
		t.Errorf("channel = %s", pub.channel)
	}
	var decoded Message
	if err := json.Unmarshal(pub.payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != model.NotifyRoleFull || decoded.Role != "Server" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestInboxNotifier_OneRowPerRecipient(t *testing.T) {
	inbox := &fakeInbox{}
	n := NewInboxNotifier(inbox)
	err := n.Notify(context.Background(), Message{Type: model.NotifyCancelled, Recipients: []string{"google:a", "apple:b"}, Title: "t", Content: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox.items) != 2 || inbox.items[1].Recipient != "apple:b" {
		t.Errorf("items = %+v", inbox.items)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &fakePublisher{}
	m := Multi{NewLogNotifier(zap.NewNop()), NewPubSubNotifier(&fakePublisher{err: boom}, "x"), NewPubSubNotifier(ok, "y")}

	err := m.Notify(context.Background(), Message{Type: "t"})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined boom, got %v", err)
	}
	if ok.channel != "y" {
		t.Error("later notifiers must still run")
	}
}
