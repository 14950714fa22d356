package portal

import (
	"io"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// Portal is a spherical region of the scene linking to another place or capture. A sealed portal
// cannot be walked into.
type Portal struct {
	Name   string
	Center mgl64.Vec3
	Radius float64
	Sealed bool
}

func (p Portal) contains(pos mgl64.Vec3) bool {
	return pos.Sub(p.Center).LenSqr() < p.Radius*p.Radius
}

// Handler is notified when the viewer enters or leaves a portal.
type Handler interface {
	HandleEnter(p Portal)
	HandleLeave(p Portal)
}

// NopHandler ...
type NopHandler struct{}

func (NopHandler) HandleEnter(Portal) {}
func (NopHandler) HandleLeave(Portal) {}

// Arbiter blocks movement into sealed portals and keeps track of which portals the viewer is
// standing in.
type Arbiter struct {
	log logrus.FieldLogger

	mu      deadlock.RWMutex
	portals *orderedmap.OrderedMap[string, Portal]
	inside  map[string]struct{}

	hMu deadlock.RWMutex
	h   Handler
}

// NewArbiter returns an Arbiter with no portals.
func NewArbiter(log logrus.FieldLogger) *Arbiter {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Arbiter{
		log:     log,
		portals: orderedmap.NewOrderedMap[string, Portal](),
		inside:  make(map[string]struct{}),
		h:       NopHandler{},
	}
}

// Handle sets the handler notified of portal transitions. A nil handler resets it.
func (a *Arbiter) Handle(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	a.hMu.Lock()
	a.h = h
	a.hMu.Unlock()
}

func (a *Arbiter) handler() Handler {
	a.hMu.RLock()
	defer a.hMu.RUnlock()
	return a.h
}

// Add adds or replaces a portal.
func (a *Arbiter) Add(p Portal) {
	a.mu.Lock()
	a.portals.Set(p.Name, p)
	a.mu.Unlock()
}

// Remove removes a portal, returning false if it did not exist.
func (a *Arbiter) Remove(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inside, name)
	return a.portals.Delete(name)
}

// SetSealed seals or unseals a portal, returning false if it does not exist.
func (a *Arbiter) SetSealed(name string, sealed bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.portals.Get(name)
	if !ok {
		return false
	}
	p.Sealed = sealed
	a.portals.Set(name, p)
	return true
}

// Inside returns the names of the portals the viewer was in at the last Track call.
func (a *Arbiter) Inside() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var names []string
	for el := a.portals.Front(); el != nil; el = el.Next() {
		if _, ok := a.inside[el.Key]; ok {
			names = append(names, el.Key)
		}
	}
	return names
}

// Blocks returns true if the movement enters a sealed portal from outside it.
func (a *Arbiter) Blocks(oldPos, newPos mgl64.Vec3) bool {
	_, ok := a.blocking(oldPos, newPos)
	return ok
}

// Describe ...
func (a *Arbiter) Describe(oldPos, newPos mgl64.Vec3) (*orderedmap.OrderedMap[string, any], bool) {
	p, ok := a.blocking(oldPos, newPos)
	if !ok {
		return nil, false
	}
	data := orderedmap.NewOrderedMap[string, any]()
	data.Set("portal", p.Name)
	data.Set("center", p.Center)
	return data, true
}

func (a *Arbiter) blocking(oldPos, newPos mgl64.Vec3) (Portal, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for el := a.portals.Front(); el != nil; el = el.Next() {
		p := el.Value
		if p.Sealed && p.contains(newPos) && !p.contains(oldPos) {
			return p, true
		}
	}
	return Portal{}, false
}

// Track updates portal proximity with the viewer's committed position. It is called every frame,
// whether or not the viewer moved.
func (a *Arbiter) Track(pos mgl64.Vec3) {
	var entered, left []Portal

	a.mu.Lock()
	for el := a.portals.Front(); el != nil; el = el.Next() {
		p := el.Value
		_, was := a.inside[p.Name]
		is := p.contains(pos)
		switch {
		case is && !was:
			a.inside[p.Name] = struct{}{}
			entered = append(entered, p)
		case !is && was:
			delete(a.inside, p.Name)
			left = append(left, p)
		}
	}
	a.mu.Unlock()

	h := a.handler()
	for _, p := range left {
		a.log.WithField("portal", p.Name).Debug("left portal")
		h.HandleLeave(p)
	}
	for _, p := range entered {
		a.log.WithField("portal", p.Name).Debug("entered portal")
		h.HandleEnter(p)
	}
}
