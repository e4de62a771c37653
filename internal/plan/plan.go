// Package plan classifies commands as risky and builds the annotated command
// plan that every host in a run executes.
package plan

import "strings"

// fragments is the fixed danger list. Matching is a case-insensitive
// substring test, so short entries like "rm" and "del" deliberately catch
// anything that contains them.
var fragments = []string{
	// Linux / macOS
	"rm",
	"rmdir",
	"del",
	"rimraf",
	"rm -rf",
	"shutdown",
	"reboot",
	"mkfs",
	"dd if=",
	"chmod 777 /",
	"chown root",
	"kill -9 -1",
	"mv /",
	"cp /",

	// Windows
	"del /f /s /q",
	"format",
	"netsh advfirewall reset",
	"netsh firewall",
	"erase /f",
	"rd /s /q",
	"taskkill /F /IM",
	"reg delete",
	"sc stop",
	"sc delete",
}

// Fragments returns a copy of the danger list.
func Fragments() []string {
	out := make([]string, len(fragments))
	copy(out, fragments)
	return out
}

// Match returns the first danger fragment contained in cmd, ignoring case.
func Match(cmd string) (string, bool) {
	lower := strings.ToLower(cmd)
	for _, f := range fragments {
		if strings.Contains(lower, strings.ToLower(f)) {
			return f, true
		}
	}
	return "", false
}

// IsRisky reports whether cmd contains any danger fragment.
// The empty command is safe.
func IsRisky(cmd string) bool {
	_, ok := Match(cmd)
	return ok
}

// Entry is one command in a plan.
type Entry struct {
	Command string
	Risky   bool // skip instead of running
}

// Plan is the ordered, risk-annotated command list shared by all hosts in a
// run. It is never modified after Filter returns.
type Plan []Entry

// Filter annotates cmds in order. An entry is risky when its text matches the
// danger list and force is false.
func Filter(cmds []string, force bool) Plan {
	p := make(Plan, len(cmds))
	for i, c := range cmds {
		p[i] = Entry{
			Command: c,
			Risky:   !force && IsRisky(c),
		}
	}
	return p
}

// Risky returns how many entries will be skipped.
func (p Plan) Risky() int {
	n := 0
	for _, e := range p {
		if e.Risky {
			n++
		}
	}
	return n
}

// Commands returns the command texts in plan order.
func (p Plan) Commands() []string {
	out := make([]string, len(p))
	for i, e := range p {
		out[i] = e.Command
	}
	return out
}
