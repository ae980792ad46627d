package cast

import (
	"fmt"
	"strings"

	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/value"
)

// CastError reports a value that could not be converted. Description,
// Target and Value are kept apart so callers can assemble their own
// multi-item reports; Items holds the per-index failures of a batch cast.
type CastError struct {
	Description string
	Target      Type
	Value       any
	Items       []ItemError
	msg         string
}

// ItemError is one failed element of a batch cast.
type ItemError struct {
	Index int
	Value any
	Err   *CastError
}

func (e *CastError) Error() string {
	return e.msg
}

// ErrCode implements errs.Coded.
func (e *CastError) ErrCode() errs.Code {
	return errs.Cast
}

// errSubjectType: "Can't cast subject of type <kind>[ to type <target>]".
func errSubjectType(kind string, target Type) *CastError {
	msg := "Can't cast subject of type " + kind
	if target != "" {
		msg += " to type " + string(target)
	}
	return &CastError{Description: "subject of type " + kind, Target: target, msg: msg}
}

// errDescribed: "Can't cast <what> to type <target>."
func errDescribed(what string, target Type, v any) *CastError {
	return &CastError{
		Description: what,
		Target:      target,
		Value:       v,
		msg:         fmt.Sprintf("Can't cast %s to type %s.", what, target),
	}
}

// errValue: "Can't cast '<v>' to type <target>"
func errValue(v any, target Type) *CastError {
	return &CastError{
		Description: "'" + value.Stringify(v) + "'",
		Target:      target,
		Value:       v,
		msg:         fmt.Sprintf("Can't cast '%s' to type %s", value.Stringify(v), target),
	}
}

func errItems(target Type, subject any, items []ItemError) *CastError {
	err := errDescribed("all items in the subject", target, subject)
	err.Items = items
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("[%d]: %s", item.Index, item.Err.msg)
	}
	err.msg += "\n\n" + strings.Join(lines, "\n")
	return err
}

func errUnknownType(raw string) *CastError {
	err := errDescribed("subject", Type(raw), nil)
	list, _ := value.CanonicalJSON(Types)
	err.msg += " Expected one of " + string(list)
	return err
}
