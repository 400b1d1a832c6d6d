package charge

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/turtacn/ChargeMatch/internal/domain/molecule"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// AssignmentError lists the atoms for which no shell produced a match.  It is
// always delivered as the cause of an ErrCodeAssignment AppError.
type AssignmentError struct {
	Atoms    []molecule.AtomID
	Shells   []int
	Strategy string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("no charges for atoms %s (strategy=%s shells=%v)",
		joinAtoms(e.Atoms), e.Strategy, e.Shells)
}

func joinAtoms(ids []molecule.AtomID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

func containsShell(shells []int, s int) bool {
	for _, x := range shells {
		if x == s {
			return true
		}
	}
	return false
}

// newAssignmentError builds the user-facing failure.  hint is appended to
// the message and depends on the collector strategy.
func newAssignmentError(strategy string, atoms []molecule.AtomID, shells []int, hint string) error {
	cause := &AssignmentError{
		Atoms:    atoms,
		Shells:   append([]int(nil), shells...),
		Strategy: strategy,
	}
	msg := fmt.Sprintf("Could not find charges for atoms %s.", joinAtoms(atoms))
	if hint != "" {
		msg += " " + hint
	}
	return errors.New(errors.ErrCodeAssignment, msg).
		WithDetail(fmt.Sprintf("strategy=%s shells=%v", strategy, shells)).
		WithCause(cause)
}

// UnresolvedAtoms extracts the unresolved atom ids from an assignment
// failure, or nil when err is not one.
func UnresolvedAtoms(err error) []molecule.AtomID {
	var ae *AssignmentError
	if stderrors.As(err, &ae) {
		return ae.Atoms
	}
	return nil
}

//Personal.AI order the ending
