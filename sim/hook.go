package sim

// HookPos is a position within the logic of a hookable object where hooks
// can be attached.
type HookPos struct {
	Name string
}

// HookPosBeforeEvent triggers right before an event is handled.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent triggers right after an event is handled.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// HookCtx bundles the information about the site where a hook fires.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// A Hook is a piece of logic that a hookable object invokes at certain
// positions. Hooks observe the simulation without changing it.
type Hook interface {
	Func(ctx HookCtx)
}

// Hookable is an object that hooks can be attached to.
type Hookable interface {
	// AcceptHook attaches a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of attached hooks, letting hot paths skip
	// building hook contexts when nobody listens.
	NumHooks() int

	// Hooks returns all attached hooks.
	Hooks() []Hook
}

// HookableBase implements Hookable and can be embedded by types that want to
// accept hooks.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// AcceptHook attaches a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of attached hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns all attached hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// InvokeHook fires all attached hooks with the given context.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
