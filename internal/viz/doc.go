// Package viz renders a running control loop in the terminal.
//
// A [Stream] is registered with the loop as both a step observer and a plan
// observer. It throttles plant states to the configured frequency and hands
// them, with the cheapest candidate paths of each plan, to a Bubble Tea
// [Model]. The model draws the site skeleton on a braille [Canvas], overlays
// up to max_traces planned paths in the trace colour, and plots recent plan
// costs.
//
// # Key Bindings
//
//	Space - Freeze the display
//	C     - Toggle fixed or tracking camera
//	T     - Toggle traces
//	R     - Reframe the camera and drop traces
//	Q     - Quit
package viz
