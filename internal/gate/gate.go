package gate

import (
	"fmt"
	"strings"
)

// DefaultDenied is the baseline set of command patterns that are never
// allowed to run. Matching is plain substring matching: this blocks the
// obvious destructive invocations, not obfuscated or indirect ones. It
// is a guardrail, not a sandbox.
var DefaultDenied = []string{
	"rm -rf /",
	"sudo rm",
	"mkfs",
	"dd if=",
	":(){:|:&};:", // fork bomb
}

// Gate statically decides whether a command string may run. It holds
// no mutable state after construction and is safe for concurrent use.
type Gate struct {
	denied  []string
	allowed map[string]struct{}
}

// New builds a gate. A nil denied slice selects DefaultDenied. If
// allowed is non-empty, the leading token of every command must appear
// in it; otherwise any command that matches no deny pattern passes.
func New(denied []string, allowed []string) *Gate {
	if denied == nil {
		denied = DefaultDenied
	}
	g := &Gate{denied: denied}
	if len(allowed) > 0 {
		g.allowed = make(map[string]struct{}, len(allowed))
		for _, a := range allowed {
			g.allowed[a] = struct{}{}
		}
	}
	return g
}

// Check returns whether command may run and, when it may not, a reason
// naming the deny pattern or rejected program. Deny patterns are
// checked first, unconditionally. Check has no side effects; the same
// command and configuration always yield the same verdict.
func (g *Gate) Check(command string) (bool, string) {
	for _, denied := range g.denied {
		if strings.Contains(command, denied) {
			return false, fmt.Sprintf("denied command pattern: %s", denied)
		}
	}

	if g.allowed != nil {
		name := leadingToken(command)
		if _, ok := g.allowed[name]; !ok {
			return false, fmt.Sprintf("command not in allowed list: %s", name)
		}
	}

	return true, ""
}

func leadingToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
