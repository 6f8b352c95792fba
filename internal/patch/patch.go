// Package patch applies partial updates to a customer. Raw operations are
// parsed into one command type per supported field and applied in a fixed
// order: every replace, then every add, then every remove.
package patch

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

// Operation is one element of a JSON Patch style request body.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s", o.Op, o.Path)
}

type phase int

const (
	phaseReplace phase = iota
	phaseAdd
	phaseRemove
)

// Command is a typed partial update. The set of implementations is closed.
type Command interface {
	phase() phase
}

type ReplaceNachname struct{ Value string }
type ReplaceEmail struct{ Value string }
type AddInteresse struct{ Value string }
type RemoveInteresse struct{ Value string }

func (ReplaceNachname) phase() phase { return phaseReplace }
func (ReplaceEmail) phase() phase    { return phaseReplace }
func (AddInteresse) phase() phase    { return phaseAdd }
func (RemoveInteresse) phase() phase { return phaseRemove }

// Parse maps raw operations to commands. Operations with an unknown verb or
// path are returned as ignored and have no effect.
func Parse(ops []Operation) (cmds []Command, ignored []Operation) {
	for _, op := range ops {
		switch {
		case op.Op == "replace" && op.Path == "/nachname":
			cmds = append(cmds, ReplaceNachname{Value: op.Value})
		case op.Op == "replace" && op.Path == "/email":
			cmds = append(cmds, ReplaceEmail{Value: op.Value})
		case op.Op == "add" && op.Path == "/interessen":
			cmds = append(cmds, AddInteresse{Value: op.Value})
		case op.Op == "remove" && op.Path == "/interessen":
			cmds = append(cmds, RemoveInteresse{Value: op.Value})
		default:
			ignored = append(ignored, op)
		}
	}
	return cmds, ignored
}

// FieldValidator checks a single field value against validation tags.
type FieldValidator interface {
	Var(field string, value any, tag string) error
}

// Apply runs cmds against a copy of k and returns the patched copy. k itself
// is never modified. All replace violations are reported together, as are
// all unknown interests of the add and remove phases.
func Apply(k *domain.Kunde, cmds []Command, v FieldValidator) (*domain.Kunde, error) {
	patched := k.Clone()

	if err := applyReplaces(patched, filter(cmds, phaseReplace), v); err != nil {
		return nil, err
	}
	if err := applyInteressen(patched, filter(cmds, phaseAdd)); err != nil {
		return nil, err
	}
	if err := applyInteressen(patched, filter(cmds, phaseRemove)); err != nil {
		return nil, err
	}
	return patched, nil
}

func filter(cmds []Command, p phase) []Command {
	var out []Command
	for _, c := range cmds {
		if c.phase() == p {
			out = append(out, c)
		}
	}
	return out
}

func applyReplaces(k *domain.Kunde, cmds []Command, v FieldValidator) error {
	violations := &validation.Violations{}
	check := func(field, value, tag string) bool {
		err := v.Var(field, value, tag)
		if err == nil {
			return true
		}
		var fieldViolations *validation.Violations
		if errors.As(err, &fieldViolations) {
			violations.Messages = append(violations.Messages, fieldViolations.Messages...)
		} else {
			violations.Add(err.Error())
		}
		return false
	}

	for _, c := range cmds {
		switch cmd := c.(type) {
		case ReplaceNachname:
			if check("nachname", cmd.Value, "required,nachname") {
				k.Nachname = cmd.Value
			}
		case ReplaceEmail:
			if check("email", cmd.Value, "required,email") {
				k.Email = cmd.Value
			}
		}
	}
	return violations.Err()
}

func applyInteressen(k *domain.Kunde, cmds []Command) error {
	violations := &validation.Violations{}
	for _, c := range cmds {
		switch cmd := c.(type) {
		case AddInteresse:
			if i, ok := domain.ParseInteresse(cmd.Value); ok {
				k.AddInteresse(i)
			} else {
				violations.Add(cmd.Value + " ist kein Interesse")
			}
		case RemoveInteresse:
			if i, ok := domain.ParseInteresse(cmd.Value); ok {
				k.RemoveInteresse(i)
			} else {
				violations.Add(cmd.Value + " ist kein Interesse")
			}
		}
	}
	return violations.Err()
}
