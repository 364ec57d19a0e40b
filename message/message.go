// Package message defines the immutable unit of communication exchanged by
// block workers.
package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies what a Message means to its receivers.
type Type int

const (
	BlockPostcondition Type = iota
	ErrorCondition
	ErrorConditionUnreachable
	FoundResult
	Error
	Stale
)

var typeNames = [...]string{
	BlockPostcondition:        "BLOCK_POSTCONDITION",
	ErrorCondition:            "ERROR_CONDITION",
	ErrorConditionUnreachable: "ERROR_CONDITION_UNREACHABLE",
	FoundResult:               "FOUND_RESULT",
	Error:                     "ERROR",
	Stale:                     "STALE",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t is one of the declared message types.
func (t Type) Valid() bool {
	return t >= 0 && int(t) < len(typeNames)
}

// Terminal reports whether receipt of a message of this type ends the run.
func (t Type) Terminal() bool {
	return t == FoundResult || t == Error
}

// ParseType maps a wire name back to its Type.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if n == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

// Verdict is the outcome carried by a FoundResult message.
type Verdict string

const (
	Safe     Verdict = "safe"
	Violated Verdict = "violated"
	Unknown  Verdict = "unknown"
)

// Message is a value type; copies are independent.
type Message struct {
	Type    Type
	Source  string // id of the block (or role) that sent the message
	Target  int    // program location the message is aimed at
	Payload string
	First   bool // set only on the root's seed postcondition
}

func (m Message) String() string {
	s := fmt.Sprintf("%s from=%s target=%d", m.Type, m.Source, m.Target)
	if m.Payload != "" {
		s += " payload=" + strconv.Quote(m.Payload)
	}
	if m.First {
		s += " first"
	}
	return s
}

// Postcondition builds a forward summary aimed at location target.
func Postcondition(source string, target int, formula string, first bool) Message {
	return Message{Type: BlockPostcondition, Source: source, Target: target, Payload: formula, First: first}
}

// Condition builds a backward error condition aimed at location target.
func Condition(source string, target int, formula string) Message {
	return Message{Type: ErrorCondition, Source: source, Target: target, Payload: formula}
}

func Unreachable(source string, target int, formula string) Message {
	return Message{Type: ErrorConditionUnreachable, Source: source, Target: target, Payload: formula}
}

// Result builds a terminal verdict message.
func Result(source string, v Verdict) Message {
	return Message{Type: FoundResult, Source: source, Payload: string(v)}
}

// Failure builds a terminal error message carrying the cause.
func Failure(source string, err error) Message {
	return Message{Type: Error, Source: source, Payload: err.Error()}
}

// StaleDeclaration announces whether source currently has no new
// information. consumed is the number of postconditions and error conditions
// addressed to source that it has processed so far; a receiver that has seen
// more of them than that knows the declaration is out of date.
func StaleDeclaration(source string, stale bool, consumed int) Message {
	return Message{Type: Stale, Source: source, Payload: fmt.Sprintf("%t/%d", stale, consumed)}
}

// IsStale decodes the flag of a Stale message.
func (m Message) IsStale() (bool, error) {
	stale, _, err := m.Staleness()
	return stale, err
}

// Staleness decodes both halves of a Stale payload.
func (m Message) Staleness() (stale bool, consumed int, err error) {
	if m.Type != Stale {
		return false, 0, fmt.Errorf("%s is not a stale declaration", m.Type)
	}
	flag, count, ok := strings.Cut(m.Payload, "/")
	if !ok {
		return false, 0, fmt.Errorf("stale payload %q has no consumed count", m.Payload)
	}
	if stale, err = strconv.ParseBool(flag); err != nil {
		return false, 0, err
	}
	if consumed, err = strconv.Atoi(count); err != nil {
		return false, 0, fmt.Errorf("stale payload %q: %w", m.Payload, err)
	}
	if consumed < 0 {
		return false, 0, fmt.Errorf("stale payload %q has a negative count", m.Payload)
	}
	return stale, consumed, nil
}

// Verdict decodes the payload of a FoundResult message.
func (m Message) Verdict() (Verdict, error) {
	if m.Type != FoundResult {
		return "", fmt.Errorf("%s carries no verdict", m.Type)
	}
	switch v := Verdict(m.Payload); v {
	case Safe, Violated, Unknown:
		return v, nil
	default:
		return "", fmt.Errorf("unknown verdict %q", m.Payload)
	}
}
