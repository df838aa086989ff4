package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/infrastructure/resilience"
)

type publisherFake struct {
	msgs []*nats.Msg
	errs []error
}

func (f *publisherFake) PublishMsg(msg *nats.Msg) error {
	f.msgs = append(f.msgs, msg)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func TestPublishSolveEventEncodesJSONWithHeaders(t *testing.T) {
	fake := &publisherFake{}
	p := &Publisher{pub: fake, subject: DefaultSubject}

	event := domain.SolveEvent{ID: "ev-1", Question: "npv?", Status: domain.SolveSuccess, CardID: "npv_basic", Candidates: 3}
	if err := p.PublishSolveEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishSolveEvent() error = %v", err)
	}
	if len(fake.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.msgs))
	}
	msg := fake.msgs[0]
	if msg.Subject != DefaultSubject || msg.Header.Get(nats.MsgIdHdr) != "ev-1" || msg.Header.Get("Vq-Status") != "success" {
		t.Fatalf("unexpected message %+v", msg)
	}
	var decoded domain.SolveEvent
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CardID != "npv_basic" || decoded.Candidates != 3 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestPublishSolveEventRetriesDisconnects(t *testing.T) {
	fake := &publisherFake{errs: []error{nats.ErrDisconnected}}
	p := &Publisher{
		pub:     fake,
		subject: DefaultSubject,
		executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
		}),
	}

	if err := p.PublishSolveEvent(context.Background(), domain.SolveEvent{ID: "ev-2"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(fake.msgs) != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", len(fake.msgs))
	}
}

func TestPublishSolveEventMarksConnectionErrorsTemporary(t *testing.T) {
	fake := &publisherFake{errs: []error{nats.ErrConnectionClosed}}
	p := &Publisher{pub: fake, subject: DefaultSubject}

	err := p.PublishSolveEvent(context.Background(), domain.SolveEvent{ID: "ev-3"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("expected wrapped nats error, got %v", err)
	}
}
