package components

import "fmt"

// Registry maps verb names to their Component implementation.
type Registry struct {
	components map[string]Component
}

// NewRegistry builds a Registry preloaded with every built-in component.
func NewRegistry() *Registry {
	r := &Registry{components: make(map[string]Component)}
	for _, c := range []Component{
		&RunComponent{},
		&CopyComponent{add: false},
		&CopyComponent{add: true},
		&ArgComponent{verb: "ARG"},
		&ArgComponent{verb: "ENV", isEnv: true},
		&CacheFileComponent{},
		&CacheEvictComponent{},
		&QueryComponent{},
		&WorkdirComponent{},
		&WaitComponent{},
		&DNFComponent{},
		&ServiceComponent{},
		&QueueSentinelComponent{},
		&FactComponent{},
	} {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a component for its verb.
func (r *Registry) Register(c Component) {
	r.components[c.Verb()] = c
}

// Get looks up the component registered for verb.
func (r *Registry) Get(verb string) (Component, error) {
	c, ok := r.components[verb]
	if !ok {
		return nil, fmt.Errorf("components: unknown verb %q", verb)
	}
	return c, nil
}
