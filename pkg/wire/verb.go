// Package wire defines the ThingSet wire-level constants: request verbs,
// response status codes, and the CAN identifier algebra used to address
// frames on a CAN bus.
package wire

import "fmt"

// Verb identifies a ThingSet request operation. In binary mode a Verb is
// the first byte of a request buffer; in text mode it is mapped to/from
// a single ASCII character.
type Verb uint8

const (
	// VerbGet reads the value of an encodable node, or a group's children.
	VerbGet Verb = 0x01

	// VerbExec invokes a function node with a decoded argument list.
	VerbExec Verb = 0x02

	// VerbDelete removes a node via its custom request handler.
	VerbDelete Verb = 0x04

	// VerbFetch reads a list of named/identified children from a group,
	// or lists a group's children when the payload is null.
	VerbFetch Verb = 0x05

	// VerbCreate adds a node via its custom request handler.
	VerbCreate Verb = 0x06

	// VerbUpdate writes a map of child values into a group.
	VerbUpdate Verb = 0x07

	// VerbDesire is a one-way update with no response expected.
	VerbDesire Verb = 0x1D

	// VerbReport is a one-way, possibly multi-frame, publication of values.
	VerbReport Verb = 0x1F

	// VerbForward peels a node-ID prefix and re-dispatches to another
	// transport by the gateway. Unlike the other verbs, no wire byte
	// for it is interoperably fixed; gateway forwarding only needs to
	// agree with itself on the value, so 0x08 is chosen as the next
	// unused low verb slot after update.
	VerbForward Verb = 0x08
)

// String returns the verb's canonical name.
func (v Verb) String() string {
	switch v {
	case VerbGet:
		return "get"
	case VerbExec:
		return "exec"
	case VerbDelete:
		return "delete"
	case VerbFetch:
		return "fetch"
	case VerbCreate:
		return "create"
	case VerbUpdate:
		return "update"
	case VerbDesire:
		return "desire"
	case VerbReport:
		return "report"
	case VerbForward:
		return "forward"
	default:
		return fmt.Sprintf("verb(0x%02x)", uint8(v))
	}
}

// textVerbs maps the text-mode ASCII verb character to its binary Verb.
var textVerbs = map[byte]Verb{
	'?': VerbGet,
	'=': VerbUpdate,
	'+': VerbCreate,
	'-': VerbDelete,
	'!': VerbExec,
	'@': VerbDesire,
	'#': VerbReport,
}

var verbText = map[Verb]byte{
	VerbGet:    '?',
	VerbUpdate: '=',
	VerbCreate: '+',
	VerbDelete: '-',
	VerbExec:   '!',
	VerbDesire: '@',
	VerbReport: '#',
}

// ErrUnknownVerb indicates a byte or character did not map to a known verb.
var ErrUnknownVerb = fmt.Errorf("thingset: unknown verb")

// VerbFromText maps a text-mode verb character to a Verb.
func VerbFromText(c byte) (Verb, error) {
	v, ok := textVerbs[c]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVerb, c)
	}
	return v, nil
}

// TextByte returns the text-mode ASCII character for the verb.
func (v Verb) TextByte() (byte, error) {
	c, ok := verbText[v]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVerb, v)
	}
	return c, nil
}
