package filter

import (
	"errors"
	"fmt"

	"cvd-cam-go/internal/frame"
)

// ErrUnknownFilter is matched by the error Apply returns for an unregistered name.
var ErrUnknownFilter = errors.New("unknown filter")

type UnknownFilterError struct {
	Name string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q", e.Name)
}

func (e *UnknownFilterError) Is(target error) bool {
	return target == ErrUnknownFilter
}

type Entry struct {
	Name string
	Fn   Func
}

// Dispatcher maps filter names to implementations. It is read-only after
// construction and safe for concurrent use.
type Dispatcher struct {
	filters map[string]Func
	names   []string
}

// NewDispatcher builds a dispatcher over the canonical filter bank.
func NewDispatcher() *Dispatcher {
	d, err := NewDispatcherWith(Bank())
	if err != nil {
		panic(err)
	}
	return d
}

func NewDispatcherWith(entries []Entry) (*Dispatcher, error) {
	d := &Dispatcher{
		filters: make(map[string]Func, len(entries)),
		names:   make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" || e.Fn == nil {
			return nil, errors.New("filter entry needs a name and a function")
		}
		if _, ok := d.filters[e.Name]; ok {
			return nil, fmt.Errorf("duplicate filter %q", e.Name)
		}
		d.filters[e.Name] = e.Fn
		d.names = append(d.names, e.Name)
	}
	return d, nil
}

// Apply runs the named filter on f. The input is validated first; a
// malformed frame or an unknown name is returned as an error and f is left
// untouched. The Original filter returns f itself.
func (d *Dispatcher) Apply(name string, f frame.Frame) (frame.Frame, error) {
	if err := f.Validate(); err != nil {
		return frame.Frame{}, err
	}
	fn, ok := d.filters[name]
	if !ok {
		return frame.Frame{}, &UnknownFilterError{Name: name}
	}
	return fn(f), nil
}

func (d *Dispatcher) Has(name string) bool {
	_, ok := d.filters[name]
	return ok
}

// Names lists the registered filters in presentation order.
func (d *Dispatcher) Names() []string {
	return append([]string(nil), d.names...)
}
