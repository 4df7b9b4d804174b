// Package optest implements differential testing of operations: each case runs the same operation on randomly
// generated inputs with the eager reference backend (package eager) and with a program built with netbuilder and
// executed by a backends.Executor, and compares the results within a tolerance.
//
// Cases are rows of a table of CaseDef, consumed by the generic driver Run:
//
//	var guard = optest.TargetGuard(backends.HostTarget())
//
//	func TestExpandDims(t *testing.T) {
//		guard.Skip(t)
//		h := must.M1(optest.NewHarness(backends.HostTarget(), 42))
//		optest.Run(t, h, opdefs.ExpandDims, opdefs.ExpandDimsCases)
//	}
//
// Gradients, when checked, are computed on programs built separately from the forward ones, so a program instance
// is never used for both.
package optest
