package temporal

// Handler is notified of temporal state changes. It is how a UI builds and updates its time
// toggle.
type Handler interface {
	// HandleInitialize is called once the default variant is loaded and active.
	HandleInitialize(variants []Variant, active Variant)
	// HandleSwitch is called after the active variant changed.
	HandleSwitch(from, to Variant)
	// HandleLoadFailed is called when a variant fails to load.
	HandleLoadFailed(v Variant, err error)
}

// NopHandler implements Handler and does nothing.
type NopHandler struct{}

func (NopHandler) HandleInitialize([]Variant, Variant) {}
func (NopHandler) HandleSwitch(Variant, Variant)       {}
func (NopHandler) HandleLoadFailed(Variant, error)     {}
