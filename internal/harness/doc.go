// Package harness runs declarative x-test scenarios end to end.
//
// A scenario describes the pages a run can open and what each page registers.
// The harness turns every page into a suite setup function, serves them from
// a registry and drives a whole run through the real bus, orchestrator and
// suite runtime. The TAP stream it produces is compared against golden files
// or checked with assertions.
//
// # Scenario Format
//
//	name: nested_tests
//	description: "Child pages run after their initiator"
//	url: http://localhost/test/index.html
//	interval: 50ms
//	pages:
//	  /test/index.html:
//	    - describe: math
//	      children:
//	        - it: adds
//	        - it: divides
//	          fail: "division by zero"
//	    - test: ./child.html
//	    - coverage: ../src/math.js
//	      goal: 80
//	  /test/child.html:
//	    - it: later
//	      directive: todo
//	coverage:
//	  - url: http://localhost/src/math.js
//	    text: "export const add = (a, b) => a + b;\n"
//	    ranges: [{start: 0, end: 36}]
//	assertions:
//	  - type: summary
//	    ok: false
//
// # Node Types
//
// Exactly one of these keys selects what a node registers:
//
//   - describe: a group with children; directive skip, todo or only
//   - it: a test case; fail, panic, sleep and timeout shape its body
//   - test: another page, resolved against the current one
//   - coverage: a coverage goal for a file, with goal in [0, 100]
//   - wait_for: top level only; registers children once its delay has passed
//   - error: top level only; reports a failure outside any test
//
// # Assertion Types
//
//   - contains: the stream has a line equal to line
//   - order: lines appear in the given order, not necessarily adjacent
//   - count: exactly count lines start with prefix
//   - summary: the run ended with the given ok, bailed and count values
//
// # Golden Files
//
// RunWithGolden stores complete TAP streams under testdata/golden. Run
//
//	go test ./internal/harness -update
//
// to regenerate them.
package harness
