// Package scriptflow is the behavior-scripting core of a retro 2D game
// engine. Content authors describe level logic - gates opening, cutscenes
// starting, enemies spawning, dialogue appearing, flags toggling - as
// graphs of Event, Condition, and Action nodes connected by directed,
// port-addressed edges. The interp package executes loaded graphs once per
// simulation tick against a long-lived interpreter state, dispatching node
// behavior through the registry package and calling out to the host engine
// through the Facade interface.
//
// This root package holds the data model shared by the subpackages: nodes,
// edges, graphs, the interpreter state, snapshots, handler signatures, and
// the host facade.
//
//	import "github.com/emberforge/scriptflow"
//	import "github.com/emberforge/scriptflow/interp"
//	import "github.com/emberforge/scriptflow/loader"
//	import "github.com/emberforge/scriptflow/registry"
package scriptflow
