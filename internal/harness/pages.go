package harness

import (
	"context"
	"errors"
	"time"

	"github.com/Netflix/x-test/internal/suite"
)

// registrar is what describe bodies and page setups register through.
type registrar interface {
	Describe(text string, fn func(g *suite.Group))
	DescribeSkip(text string, fn func(g *suite.Group))
	DescribeOnly(text string, fn func(g *suite.Group))
	DescribeTodo(text string, fn func(g *suite.Group))
	It(text string, fn suite.TestFunc, opts ...suite.ItOption)
	ItSkip(text string, fn suite.TestFunc, opts ...suite.ItOption)
	ItOnly(text string, fn suite.TestFunc, opts ...suite.ItOption)
	ItTodo(text string, fn suite.TestFunc, opts ...suite.ItOption)
	Test(href string)
	Coverage(href string, goal float64)
}

var (
	_ registrar = (*suite.Suite)(nil)
	_ registrar = (*suite.Group)(nil)
)

// BuildRegistry turns every page of the scenario into a setup function.
func BuildRegistry(scenario *Scenario) (*suite.Registry, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, err
	}
	registry := suite.NewRegistry()
	for path, nodes := range scenario.Pages {
		registry.Register(path, setup(nodes))
	}
	return registry, nil
}

func setup(nodes []Node) suite.SetupFunc {
	return func(s *suite.Suite) {
		for _, n := range nodes {
			switch {
			case n.WaitFor != nil:
				waitFor(s, n)
			case n.Error != "":
				s.Fail(errors.New(n.Error))
			default:
				register(s, n)
			}
		}
	}
}

func waitFor(s *suite.Suite, n Node) {
	delay := n.WaitFor.Std()
	children := n.Children
	s.WaitFor(func(ctx context.Context) error {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if n.Fail != "" {
			return errors.New(n.Fail)
		}
		for _, child := range children {
			register(s, child)
		}
		return nil
	})
}

func register(r registrar, n Node) {
	switch {
	case n.Describe != "":
		children := n.Children
		fn := func(g *suite.Group) {
			for _, child := range children {
				register(g, child)
			}
		}
		switch n.Directive {
		case DirectiveSkip:
			r.DescribeSkip(n.Describe, fn)
		case DirectiveTodo:
			r.DescribeTodo(n.Describe, fn)
		case DirectiveOnly:
			r.DescribeOnly(n.Describe, fn)
		default:
			r.Describe(n.Describe, fn)
		}
	case n.It != "":
		var opts []suite.ItOption
		if n.Timeout > 0 {
			opts = append(opts, suite.Timeout(n.Timeout.Std()))
		}
		switch n.Directive {
		case DirectiveSkip:
			r.ItSkip(n.It, body(n), opts...)
		case DirectiveTodo:
			r.ItTodo(n.It, body(n), opts...)
		case DirectiveOnly:
			r.ItOnly(n.It, body(n), opts...)
		default:
			r.It(n.It, body(n), opts...)
		}
	case n.Test != "":
		r.Test(n.Test)
	case n.Coverage != "":
		r.Coverage(n.Coverage, n.Goal)
	}
}

func body(n Node) suite.TestFunc {
	sleep := n.Sleep.Std()
	return func(ctx context.Context) error {
		if sleep > 0 {
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if n.Panic != "" {
			panic(n.Panic)
		}
		if n.Fail != "" {
			return errors.New(n.Fail)
		}
		return nil
	}
}
