package emailsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/learnlink/backend/core"
)

// ServiceMock renders and records messages synchronously, failing with Err when set.
type ServiceMock struct {
	mu   sync.Mutex
	sent []core.EmailMessage
	Err  error
}

var _ core.EmailService = (*ServiceMock)(nil)

func NewServiceMock() *ServiceMock {
	return &ServiceMock{}
}

// NewFailingServiceMock returns a ServiceMock whose deliveries always fail with err.
func NewFailingServiceMock(err error) *ServiceMock {
	return &ServiceMock{Err: err}
}

func (svc *ServiceMock) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if svc.Err != nil {
		return svc.Err
	}
	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
	return nil
}

// SentMessages returns a copy of every delivered message.
func (svc *ServiceMock) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

// LastMessage returns the most recently delivered message.
func (svc *ServiceMock) LastMessage() (core.EmailMessage, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.sent) == 0 {
		return core.EmailMessage{}, false
	}
	return svc.sent[len(svc.sent)-1], true
}

func (svc *ServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
