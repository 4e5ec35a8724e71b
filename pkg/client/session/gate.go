package session

import "strings"

// Area is a top-level section of the app.
type Area int

const (
	// AreaAuth holds the login and sign-up screens.
	AreaAuth Area = iota
	// AreaMain holds everything that needs a signed-in user.
	AreaMain
)

func (a Area) String() string {
	if a == AreaAuth {
		return "auth"
	}
	return "main"
}

// Location is a screen: an area plus a sub-path such as "login" or "profile".
type Location struct {
	Area Area
	Path string
}

func (l Location) String() string {
	if l.Path == "" {
		return "/" + l.Area.String()
	}
	return "/" + l.Area.String() + "/" + strings.TrimPrefix(l.Path, "/")
}

// Default landing screens for each area.
var (
	AuthHome = Location{Area: AreaAuth, Path: "login"}
	MainHome = Location{Area: AreaMain, Path: "home"}
)

// Navigator is implemented by the UI router.
type Navigator interface {
	Location() Location
	Replace(Location)
}

// Gate keeps the navigator in the area matching the auth state. It
// re-evaluates on every state change and whenever LocationChanged is called.
// Replace may call LocationChanged re-entrantly; the second pass is a no-op.
type Gate struct {
	machine *Machine
	nav     Navigator
	unsub   func()
}

// NewGate starts gating nav on machine and applies the rule once.
func NewGate(machine *Machine, nav Navigator) *Gate {
	g := &Gate{machine: machine, nav: nav}
	g.unsub = machine.Subscribe(func(State) { g.evaluate() })
	g.evaluate()
	return g
}

// LocationChanged is called by the UI after a navigation.
func (g *Gate) LocationChanged() {
	g.evaluate()
}

// Close stops observing the machine.
func (g *Gate) Close() {
	g.unsub()
}

// evaluate reads the live state rather than the notified one, which may
// already have been superseded by a concurrent transition.
func (g *Gate) evaluate() {
	s := g.machine.State()
	inAuth := g.nav.Location().Area == AreaAuth
	switch {
	case s.Authenticated() && inAuth:
		g.nav.Replace(MainHome)
	case !s.Authenticated() && !inAuth:
		g.nav.Replace(AuthHome)
	}
}
