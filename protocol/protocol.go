package protocol

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/wasmship/wasmship/errors"
)

// DefaultSocketPath is the daemon endpoint when none is configured.
const DefaultSocketPath = "/tmp/wasmship.sock"

// Phrase is the daemon banner returned by the ping route.
const Phrase = "It's a Unix system. I know this."

// DefaultTag is used when a module reference carries no tag.
const DefaultTag = "latest"

// Routes served over the Unix socket.
const (
	RouteCommands = "/v1/commands"
	RouteExports  = "/v1/modules/{name}/{tag}/exports"
	RoutePing     = "/_ping"
)

// Header names.
const (
	HeaderErrorKind = "X-Wasmship-Error-Kind"
	HeaderRequestID = "X-Request-Id"
)

// CommandKind is the closed set of daemon operations.
type CommandKind string

const (
	CommandRun  CommandKind = "run"
	CommandList CommandKind = "list"
	CommandPull CommandKind = "pull"
	CommandPush CommandKind = "push"
)

// Valid reports whether k is one of the defined commands.
func (k CommandKind) Valid() bool {
	switch k {
	case CommandRun, CommandList, CommandPull, CommandPush:
		return true
	}
	return false
}

type (
	// Command is the body of a POST to RouteCommands.
	Command struct {
		// Command selects the operation.
		Command CommandKind `json:"command"`
		// Module is a "name[:tag]" reference.
		Module string `json:"module,omitempty"`
		// Function overrides the module's entry point when set.
		Function string `json:"function,omitempty"`
		// Args are decimal parameters, parsed per the function signature.
		Args []string `json:"args,omitempty"`
	}

	// Export is one function export as returned by RouteExports.
	Export struct {
		Name    string   `json:"name" yaml:"name"`
		Params  []string `json:"params" yaml:"params"`
		Results []string `json:"results" yaml:"results"`
	}

	// Reference names a tagged module.
	Reference struct {
		Name string
		Tag  string
	}
)

// Validate checks the command before it is sent or dispatched.
func (c Command) Validate() error {
	if !c.Command.Valid() {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("unknown command %q", c.Command))
	}
	if c.Command == CommandRun && c.Module == "" {
		return errors.InvalidInput(errors.PhaseDispatch, "run requires a module")
	}
	return nil
}

// referenceReserved are characters a name or tag may not contain: they are
// path separators, URL delimiters or the tag separator.
const referenceReserved = "/\\ ?#%:"

// ParseReference parses "name[:tag]". A missing tag means DefaultTag.
func ParseReference(s string) (Reference, error) {
	name, tag, hasTag := strings.Cut(s, ":")
	if name == "" {
		return Reference{}, errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("invalid module reference %q: empty name", s))
	}
	if !validSegment(name) {
		return Reference{}, errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("invalid module reference %q", s))
	}
	if !hasTag {
		tag = DefaultTag
	}
	if tag == "" || !validSegment(tag) {
		return Reference{}, errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("invalid module reference %q: bad tag", s))
	}
	return Reference{Name: name, Tag: tag}, nil
}

func validSegment(s string) bool {
	return !strings.ContainsAny(s, referenceReserved) && strings.IndexFunc(s, unicode.IsControl) < 0
}

func (r Reference) String() string {
	return r.Name + ":" + r.Tag
}

// ExportsPath returns the request path for r's export table.
func (r Reference) ExportsPath() string {
	return "/v1/modules/" + url.PathEscape(r.Name) + "/" + url.PathEscape(r.Tag) + "/exports"
}

// StatusFor maps an error kind to the HTTP status the daemon answers with.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindInvalidInput:
		return http.StatusBadRequest
	case errors.KindExecution:
		return http.StatusUnprocessableEntity
	case errors.KindBrokenFile:
		return http.StatusConflict
	case errors.KindUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
