// Package retry decides whether a failed test case is executed again. The
// decision combines a maximum number of extra attempts with an optional tag
// expression limiting which pickles are eligible, and is exposed to the run
// coordinator as a built-in plugin on the testcase:retry predicate.
package retry
