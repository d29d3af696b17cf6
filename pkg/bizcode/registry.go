package bizcode

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Code is a stable, machine-readable identifier for a catalogued failure cause.
// Codes are namespaced by subsystem: "<namespace>.<name>".
type Code string

// Namespace returns the subsystem part of the code.
func (c Code) Namespace() string {
	ns, _, _ := strings.Cut(string(c), ".")
	return ns
}

func (c Code) String() string { return string(c) }

var segment = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type entry struct {
	code    Code
	message string
}

// Registry maps codes to their canonical message. It is append-only: once a
// code is released it is never reassigned or removed.
type Registry struct {
	mu      sync.RWMutex
	byCode  map[Code]int
	entries []entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCode: make(map[Code]int)}
}

// Register adds a code and returns it. Registering the same code twice or
// using a malformed namespace/name is a programming error and panics.
func (r *Registry) Register(namespace, name, message string) Code {
	if !segment.MatchString(namespace) || !segment.MatchString(name) {
		panic(fmt.Sprintf("bizcode: malformed code %q.%q", namespace, name))
	}
	code := Code(namespace + "." + name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[code]; exists {
		panic(fmt.Sprintf("bizcode: duplicate code %q", code))
	}
	r.byCode[code] = len(r.entries)
	r.entries = append(r.entries, entry{code: code, message: message})
	return code
}

// Lookup returns the message registered for code.
func (r *Registry) Lookup(code Code) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byCode[code]
	if !ok {
		return "", false
	}
	return r.entries[idx].message, true
}

// Message returns the canonical message for code, or the code itself when it
// was never registered.
func (r *Registry) Message(code Code) string {
	if msg, ok := r.Lookup(code); ok {
		return msg
	}
	return string(code)
}

// Codes lists every registered code in registration order.
func (r *Registry) Codes() []Code {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Code, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.code
	}
	return out
}

// Namespace lists the codes registered under ns.
func (r *Registry) Namespace(ns string) []Code {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Code
	for _, e := range r.entries {
		if e.code.Namespace() == ns {
			out = append(out, e.code)
		}
	}
	return out
}

// Len reports the number of registered codes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Default holds the shared catalog.
var Default = NewRegistry()

// Register adds a code to the Default registry.
func Register(namespace, name, message string) Code {
	return Default.Register(namespace, name, message)
}

// Message resolves code against the Default registry.
func Message(code Code) string {
	return Default.Message(code)
}
