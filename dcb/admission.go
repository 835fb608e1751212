package dcb

import (
	"context"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ListenerAdmission throttles Service.Accept using a multi-window rate
// limiter (grounded on catrate.Limiter), keyed by the remote address
// category so a single noisy peer can't exhaust accept capacity for
// everyone else. This is purely additive to spec §4 — the DCB core has
// no notion of admission control, but a listener DCB that accepts
// unconditionally is not something a real router would ship.
type ListenerAdmission struct {
	limiter *catrate.Limiter
}

// NewListenerAdmission builds a ListenerAdmission from sliding-window
// rate rules, e.g. {time.Second: 50, time.Minute: 1000}.
func NewListenerAdmission(rates map[time.Duration]int) *ListenerAdmission {
	return &ListenerAdmission{limiter: catrate.NewLimiter(rates)}
}

// Allow reports whether a new accept for category (typically the remote
// address or subnet) is permitted right now, and if not, the earliest
// time it would be.
func (a *ListenerAdmission) Allow(category any) (time.Time, bool) {
	if a == nil || a.limiter == nil {
		return time.Time{}, true
	}
	return a.limiter.Allow(category)
}

// Accept wraps Protocol.Accept with admission control: when the Service's
// configured ListenerAdmission (see WithAdmission) rejects the client's
// Remote category, the accepted connection is closed immediately and
// (nil, nil) is returned instead of the client.
func (s *Service) Accept(listener *DCB) (*DCB, error) {
	proto := listener.Protocol()
	if proto == nil {
		return nil, ErrProtocolNotFound
	}

	client, err := proto.Accept(context.Background(), listener)
	if err != nil || client == nil {
		return client, err
	}

	if _, ok := s.cfg.admission.Allow(client.Remote); !ok {
		s.Close(client)
		return nil, nil
	}

	// client was already registered in the global list by the protocol's
	// call to Service.Alloc (spec §4.2); admission only gates whether it
	// survives past this point.
	listener.Stats.NAccepts++
	return client, nil
}
