package bus

import (
	"github.com/Netflix/x-test/internal/coverage"
	"github.com/Netflix/x-test/internal/tap"
)

// Type identifies a message kind on the wire.
type Type string

const (
	TypeSuiteRegister        Type = "x-test-suite-register"
	TypeSuiteReady           Type = "x-test-suite-ready"
	TypeSuiteResult          Type = "x-test-suite-result"
	TypeSuiteBail            Type = "x-test-suite-bail"
	TypeRootRun              Type = "x-test-root-run"
	TypeRootCoverageRequest  Type = "x-test-root-coverage-request"
	TypeRootPong             Type = "x-test-root-pong"
	TypeRootEnd              Type = "x-test-root-end"
	TypeClientPing           Type = "x-test-client-ping"
	TypeClientCoverageResult Type = "x-test-client-coverage-result"
)

// RegisterKind identifies what a suite-register message registers.
type RegisterKind string

const (
	RegisterKindTest          RegisterKind = "test"
	RegisterKindDescribeStart RegisterKind = "describe-start"
	RegisterKindDescribeEnd   RegisterKind = "describe-end"
	RegisterKindIt            RegisterKind = "it"
	RegisterKindCoverage      RegisterKind = "coverage"
)

// RefKind tags a Ref.
type RefKind string

const (
	RefTest     RefKind = "test"
	RefDescribe RefKind = "describe"
	RefIt       RefKind = "it"
	RefCoverage RefKind = "coverage"
)

// Ref is a back-reference to a test, describe, it or coverage goal. It never
// implies ownership.
type Ref struct {
	Kind RefKind `json:"type"`
	ID   string  `json:"id"`
}

// Error is a normalized failure: any thrown value reduced to a message and,
// when available, a stack.
type Error struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Message is implemented by every message kind.
type Message interface {
	Type() Type
	Validate() error
}

// Registration is a suite-register message.
type Registration interface {
	Message
	Kind() RegisterKind
}

// RegisterTest registers a page to be opened in its own execution context.
// InitiatorTestID is empty for the entry page.
type RegisterTest struct {
	TestID          string `json:"testId"`
	Href            string `json:"href"`
	InitiatorTestID string `json:"initiatorTestId,omitempty"`
}

// RegisterDescribeStart opens a describe group. Parents is the full ancestor
// chain at registration time; Parents[0] is always the owning test.
type RegisterDescribeStart struct {
	DescribeID string        `json:"describeId"`
	Parents    []Ref         `json:"parents"`
	Text       string        `json:"text"`
	Directive  tap.Directive `json:"directive,omitempty"`
	Only       bool          `json:"only"`
}

// RegisterDescribeEnd closes a describe group.
type RegisterDescribeEnd struct {
	DescribeID string `json:"describeId"`
}

// RegisterIt registers one test case. Interval is the timeout in
// milliseconds; zero selects the runtime default.
type RegisterIt struct {
	ItID      string        `json:"itId"`
	Parents   []Ref         `json:"parents"`
	Text      string        `json:"text"`
	Interval  int64         `json:"interval,omitempty"`
	Directive tap.Directive `json:"directive,omitempty"`
	Only      bool          `json:"only"`
}

// RegisterCoverage registers a coverage goal for one file.
type RegisterCoverage struct {
	CoverageID string  `json:"coverageId"`
	Href       string  `json:"href"`
	Goal       float64 `json:"goal"`
}

// SuiteReady signals that a test's registration window is closed.
type SuiteReady struct {
	TestID string `json:"testId"`
}

// SuiteResult reports the outcome of one it.
type SuiteResult struct {
	ItID  string `json:"itId"`
	OK    bool   `json:"ok"`
	Error *Error `json:"error"`
}

// SuiteBail reports a fatal failure inside an execution context. TestID is
// empty when the failure is not attributable to a test.
type SuiteBail struct {
	TestID string `json:"testId,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// RootRun tells the owning suite runtime to execute one it.
type RootRun struct {
	ItID      string        `json:"itId"`
	Directive tap.Directive `json:"directive,omitempty"`
	Interval  int64         `json:"interval,omitempty"`
}

// RootCoverageRequest asks automation for the run's coverage data.
type RootCoverageRequest struct{}

// RootPong answers a ClientPing.
type RootPong struct {
	Ended   bool `json:"ended"`
	Waiting bool `json:"waiting"`
}

// RootEnd is published once when the run terminates, normally or by bail.
type RootEnd struct{}

// ClientPing asks the orchestrator for its status.
type ClientPing struct{}

// ClientCoverageResult delivers byte-range coverage for the whole run.
type ClientCoverageResult struct {
	JS []coverage.Entry `json:"js"`
}

func (RegisterTest) Type() Type          { return TypeSuiteRegister }
func (RegisterDescribeStart) Type() Type { return TypeSuiteRegister }
func (RegisterDescribeEnd) Type() Type   { return TypeSuiteRegister }
func (RegisterIt) Type() Type            { return TypeSuiteRegister }
func (RegisterCoverage) Type() Type      { return TypeSuiteRegister }
func (SuiteReady) Type() Type            { return TypeSuiteReady }
func (SuiteResult) Type() Type           { return TypeSuiteResult }
func (SuiteBail) Type() Type             { return TypeSuiteBail }
func (RootRun) Type() Type               { return TypeRootRun }
func (RootCoverageRequest) Type() Type   { return TypeRootCoverageRequest }
func (RootPong) Type() Type              { return TypeRootPong }
func (RootEnd) Type() Type               { return TypeRootEnd }
func (ClientPing) Type() Type            { return TypeClientPing }
func (ClientCoverageResult) Type() Type  { return TypeClientCoverageResult }

func (RegisterTest) Kind() RegisterKind          { return RegisterKindTest }
func (RegisterDescribeStart) Kind() RegisterKind { return RegisterKindDescribeStart }
func (RegisterDescribeEnd) Kind() RegisterKind   { return RegisterKindDescribeEnd }
func (RegisterIt) Kind() RegisterKind            { return RegisterKindIt }
func (RegisterCoverage) Kind() RegisterKind      { return RegisterKindCoverage }
