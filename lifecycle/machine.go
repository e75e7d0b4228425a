// Package lifecycle holds the pickup-request state machine: which actor may
// move a request from which status to which, and the checks that guard
// every move. It has no storage dependency.
package lifecycle

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/its-tarun-2505/Trashure/models"
	apperrors "github.com/its-tarun-2505/Trashure/utils/errors"
)

// Action names a guarded operation on a pickup request.
type Action string

const (
	ActionAccept            Action = "accept"
	ActionStartRoute        Action = "on-the-way"
	ActionCollect           Action = "collected"
	ActionRequestCompletion Action = "request-completion"
	ActionApprove           Action = "approve-completion"
	ActionReject            Action = "reject-completion"
	ActionCancel            Action = "cancel"
	ActionUploadProof       Action = "upload-proof"
)

// Ownership says which relation between actor and request a rule demands.
type Ownership int

const (
	// Unassigned requires that no collector holds the request yet.
	Unassigned Ownership = iota
	// OwnerCitizen requires the actor to be the citizen who created it.
	OwnerCitizen
	// AssignedCollector requires the actor to be the accepting collector.
	AssignedCollector
)

// Rule is one row of the transition table.
type Rule struct {
	Action Action
	Actor  models.Role
	Owner  Ownership
	From   []models.Status
	// To is empty for actions that leave the status unchanged.
	To models.Status
}

var rules = []Rule{
	{ActionAccept, models.RoleCollector, Unassigned, []models.Status{models.StatusPending}, models.StatusAccepted},
	{ActionStartRoute, models.RoleCollector, AssignedCollector, []models.Status{models.StatusAccepted}, models.StatusOnTheWay},
	{ActionCollect, models.RoleCollector, AssignedCollector, []models.Status{models.StatusOnTheWay}, models.StatusCollected},
	{ActionRequestCompletion, models.RoleCollector, AssignedCollector, []models.Status{models.StatusCollected}, models.StatusPendingCompletion},
	{ActionUploadProof, models.RoleCollector, AssignedCollector, []models.Status{models.StatusCollected}, ""},
	{ActionApprove, models.RoleCitizen, OwnerCitizen, []models.Status{models.StatusPendingCompletion}, models.StatusCompleted},
	{ActionReject, models.RoleCitizen, OwnerCitizen, []models.Status{models.StatusPendingCompletion}, models.StatusRejected},
	{ActionCancel, models.RoleCitizen, OwnerCitizen,
		[]models.Status{models.StatusPending, models.StatusAccepted, models.StatusOnTheWay, models.StatusCollected},
		models.StatusCancelled},
	{ActionCancel, models.RoleCollector, AssignedCollector,
		[]models.Status{models.StatusAccepted, models.StatusOnTheWay, models.StatusCollected},
		models.StatusCancelled},
}

// Rules returns a copy of the transition table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Lookup finds the rule for an action performed by a role.
func Lookup(action Action, role models.Role) (Rule, bool) {
	for _, r := range rules {
		if r.Action == action && r.Actor == role {
			return r, true
		}
	}
	return Rule{}, false
}

// Chain is the ordered happy path.
var Chain = []models.Status{
	models.StatusPending,
	models.StatusAccepted,
	models.StatusOnTheWay,
	models.StatusCollected,
	models.StatusPendingCompletion,
	models.StatusCompleted,
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.Status) bool {
	switch s {
	case models.StatusCompleted, models.StatusCancelled, models.StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether any actor may move a request from one
// status to another.
func CanTransition(from, to models.Status) bool {
	for _, r := range rules {
		if r.To == to && r.Allows(from) {
			return true
		}
	}
	return false
}

// Check fails with InvalidTransition when no rule moves from to to.
func Check(from, to models.Status) error {
	if !CanTransition(from, to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	return nil
}

// Allows reports whether the rule may fire from status s.
func (r Rule) Allows(s models.Status) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

// Target is the status the rule moves to, or the action name when the
// status stays put.
func (r Rule) Target() string {
	if r.To == "" {
		return string(r.Action)
	}
	return string(r.To)
}

// Authorize checks the actor's role and relation to the request. It runs
// before, and independently of, the status check: a collector acting on a
// request held by someone else is denied whatever its status.
func (r Rule) Authorize(req *models.PickupRequest, actorID primitive.ObjectID, role models.Role) error {
	if role != r.Actor {
		return apperrors.Forbidden("only a " + string(r.Actor) + " can " + string(r.Action) + " this request")
	}
	switch r.Owner {
	case OwnerCitizen:
		if !req.OwnedBy(actorID) {
			return apperrors.Forbidden("request belongs to another citizen")
		}
	case AssignedCollector:
		// No collector yet means the request has not been accepted; that
		// is a status problem, reported by CheckStatus.
		if req.Collector != nil && !req.AssignedTo(actorID) {
			return apperrors.Forbidden("request is not assigned to you")
		}
	case Unassigned:
		// A request another collector already holds is no longer pending;
		// CheckStatus reports that as an invalid transition, not a 403.
	}
	return nil
}

// CheckStatus fails with InvalidTransition unless the rule may fire from
// current. Re-issuing a move that already happened fails too.
func (r Rule) CheckStatus(current models.Status) error {
	if !r.Allows(current) {
		return apperrors.InvalidTransition(string(current), r.Target())
	}
	return nil
}

// Check runs Authorize then CheckStatus.
func (r Rule) Check(req *models.PickupRequest, actorID primitive.ObjectID, role models.Role) error {
	if err := r.Authorize(req, actorID, role); err != nil {
		return err
	}
	return r.CheckStatus(req.Status)
}
