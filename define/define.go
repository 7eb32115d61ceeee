// Package define holds the marker declarations recognised by the expander.
//
// A macro set is a top-level exported variable initialised with CallMacros or
// PropMacros. Every entry of the Methods literal is a func literal; inside it
// the value the macro was invoked on is reached through Self.
//
//	var VectorMacros = define.CallMacros[Vector](define.Methods{
//		"ClampTo": func(max float64) Vector {
//			return define.Self[Vector]().Scale(max)
//		},
//	})
//
// None of these functions survive expansion.
package define

// Methods maps a member name of the target type to its macro implementation.
type Methods map[string]any

// CallMacros declares macros replacing calls to methods of T.
func CallMacros[T any](methods Methods) Methods {
	return methods
}

// PropMacros declares macros replacing reads of members of T.
func PropMacros[T any](methods Methods) Methods {
	return methods
}

// Self is the receiver of the macro being expanded.
func Self[T any]() T {
	panic("define: Self called on an unexpanded macro set")
}
