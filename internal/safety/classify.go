// Package safety decides whether a generated PowerShell script may run, and
// under what supervision. It is the trust boundary between model output and
// the filesystem: nothing the model produces executes without passing
// through Classify.
package safety

import (
	"regexp"
	"strings"
)

// Classification is the verdict attached to a generated script before
// execution.
type Classification string

const (
	// Read scripts run without approval; they may only query.
	Read Classification = "read"
	// Write scripts mutate the filesystem and require explicit approval.
	Write Classification = "write"
	// Unsafe scripts never run.
	Unsafe Classification = "unsafe"
)

// Classifier applies the rule sets against a fixed sandbox.
type Classifier struct {
	rules   *RuleSet
	sandbox Sandbox
}

// NewClassifier builds a classifier for the given sandbox root using the
// embedded default rules.
func NewClassifier(sandboxRoot string) *Classifier {
	return &Classifier{rules: DefaultRules(), sandbox: NewSandbox(sandboxRoot)}
}

// NewClassifierWithRules builds a classifier with an explicit rule manifest.
func NewClassifierWithRules(sandboxRoot string, rules *RuleSet) *Classifier {
	return &Classifier{rules: rules, sandbox: NewSandbox(sandboxRoot)}
}

// Sandbox returns the classifier's canonical sandbox.
func (c *Classifier) Sandbox() Sandbox { return c.sandbox }

// cmdletToken matches Verb-Noun shaped tokens, the operation form PowerShell
// scripts are written in.
var cmdletToken = regexp.MustCompile(`[A-Za-z]+(?:-[A-Za-z]+)+`)

// Classify decides read/write/unsafe for a script. It is a pure function of
// the script text and the sandbox root; checks apply in strict order and the
// first match wins:
//
//  1. every extracted path must canonicalize to a location under the
//     sandbox root, and no path may be built dynamically — otherwise unsafe;
//  2. any denylisted construct (process invocation, environment access,
//     registry namespaces, network, eval) — unsafe;
//  3. any known mutating operation — write;
//  4. read only when every remaining operation is on the read allowlist;
//     an unrecognized operation falls back to write, never to read.
func (c *Classifier) Classify(script string) Classification {
	paths, dynamic := ExtractPaths(script)
	if dynamic {
		return Unsafe
	}
	for _, p := range paths {
		within, ok := c.sandbox.Contains(p)
		if !ok || !within {
			return Unsafe
		}
	}

	lower := strings.ToLower(script)
	for _, pat := range c.rules.Deny.Patterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return Unsafe
		}
	}
	for _, kw := range c.rules.Deny.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return Unsafe
		}
	}

	for _, kw := range c.rules.Write.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return Write
		}
	}

	verdict := Read
	for _, op := range cmdletToken.FindAllString(script, -1) {
		switch {
		case c.rules.IsWriteCmdlet(op):
			return Write
		case c.rules.IsReadCmdlet(op):
		default:
			// Unknown operation: escalate toward approval.
			verdict = Write
		}
	}
	return verdict
}
