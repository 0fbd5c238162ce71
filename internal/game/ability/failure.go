package ability

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain identifies action failures in gRPC error details.
const ErrorDomain = "github.com/cory-johannsen/actioncore/ability"

// FailureKind names one terminal outcome of an action attempt.
type FailureKind string

const (
	KindNotParticipating          FailureKind = "not_participating"
	KindUnknownAction             FailureKind = "unknown_action"
	KindNotLearned                FailureKind = "not_learned"
	KindLevelTooLow               FailureKind = "level_too_low"
	KindInsufficientResource      FailureKind = "insufficient_resource"
	KindOnCooldown                FailureKind = "on_cooldown"
	KindSharedDelayActive         FailureKind = "shared_delay_active"
	KindNoSuchTarget              FailureKind = "no_such_target"
	KindInvalidTargetRelationship FailureKind = "invalid_target_relationship"
	KindNoValidTarget             FailureKind = "no_valid_target"
	KindUnknownEffect             FailureKind = "unknown_effect"
	// KindFizzled means costs and timers were applied but the effect routine failed.
	KindFizzled FailureKind = "fizzled"
)

// Validation reports whether the kind is an expected, user-facing validation
// outcome rather than a configuration or internal error.
func (k FailureKind) Validation() bool {
	switch k {
	case KindUnknownEffect, KindFizzled:
		return false
	}
	return true
}

// GRPCCode maps the kind to the closest gRPC status code.
func (k FailureKind) GRPCCode() codes.Code {
	switch k {
	case KindNotParticipating, KindNotLearned, KindLevelTooLow:
		return codes.PermissionDenied
	case KindUnknownAction, KindNoSuchTarget:
		return codes.NotFound
	case KindInsufficientResource:
		return codes.ResourceExhausted
	case KindOnCooldown, KindSharedDelayActive:
		return codes.Unavailable
	case KindInvalidTargetRelationship, KindNoValidTarget:
		return codes.FailedPrecondition
	case KindUnknownEffect, KindFizzled:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// Failure is a typed, reportable action outcome. Only the fields relevant to
// Kind are set.
type Failure struct {
	Kind     FailureKind
	Message  string
	ActionID string
	// Resource, Need, and Have describe an InsufficientResource failure.
	Resource string
	Need     float64
	Have     float64
	// Remaining is the wait for OnCooldown and SharedDelayActive.
	Remaining time.Duration
	// Category is the shared-delay category for SharedDelayActive.
	Category string
	// Target is the hint or entity ID for target failures.
	Target string
	// RequiredLevel is set for LevelTooLow.
	RequiredLevel int
	// Effect is the routine name for UnknownEffect and Fizzled.
	Effect string
	Cause  error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNotParticipating          = &Failure{Kind: KindNotParticipating}
	ErrUnknownAction             = &Failure{Kind: KindUnknownAction}
	ErrNotLearned                = &Failure{Kind: KindNotLearned}
	ErrLevelTooLow               = &Failure{Kind: KindLevelTooLow}
	ErrInsufficientResource      = &Failure{Kind: KindInsufficientResource}
	ErrOnCooldown                = &Failure{Kind: KindOnCooldown}
	ErrSharedDelayActive         = &Failure{Kind: KindSharedDelayActive}
	ErrNoSuchTarget              = &Failure{Kind: KindNoSuchTarget}
	ErrInvalidTargetRelationship = &Failure{Kind: KindInvalidTargetRelationship}
	ErrNoValidTarget             = &Failure{Kind: KindNoValidTarget}
	ErrUnknownEffect             = &Failure{Kind: KindUnknownEffect}
	ErrFizzled                   = &Failure{Kind: KindFizzled}
)

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	return string(f.Kind)
}

// Unwrap returns the underlying cause for error chain traversal.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Is reports whether target matches this failure by kind.
func (f *Failure) Is(target error) bool {
	if t, ok := target.(*Failure); ok {
		return f.Kind == t.Kind
	}
	return false
}

// Metadata returns the kind-specific parameters as strings for rendering and
// transport. Durations are reported in seconds.
func (f *Failure) Metadata() map[string]string {
	md := map[string]string{"kind": string(f.Kind)}
	if f.ActionID != "" {
		md["action"] = f.ActionID
	}
	switch f.Kind {
	case KindInsufficientResource:
		md["resource"] = f.Resource
		md["need"] = strconv.FormatFloat(f.Need, 'f', -1, 64)
		md["have"] = strconv.FormatFloat(f.Have, 'f', -1, 64)
		md["missing"] = strconv.FormatFloat(f.Need-f.Have, 'f', -1, 64)
	case KindOnCooldown:
		md["remaining_seconds"] = strconv.FormatFloat(f.Remaining.Seconds(), 'f', 3, 64)
	case KindSharedDelayActive:
		md["category"] = f.Category
		md["remaining_seconds"] = strconv.FormatFloat(f.Remaining.Seconds(), 'f', 3, 64)
	case KindNoSuchTarget, KindInvalidTargetRelationship:
		md["target"] = f.Target
	case KindLevelTooLow:
		md["required_level"] = strconv.Itoa(f.RequiredLevel)
	case KindUnknownEffect, KindFizzled:
		md["effect"] = f.Effect
	}
	return md
}

// GRPCStatus converts the failure to a gRPC status carrying an ErrorInfo detail.
// It satisfies the interface status.FromError looks for.
func (f *Failure) GRPCStatus() *status.Status {
	st := status.New(f.Kind.GRPCCode(), f.Error())
	withDetails, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(f.Kind),
		Domain:   ErrorDomain,
		Metadata: f.Metadata(),
	})
	if err != nil {
		return st
	}
	return withDetails
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func notParticipating(actorID string) *Failure {
	return &Failure{Kind: KindNotParticipating, Message: fmt.Sprintf("%s cannot use actions", actorID)}
}

func unknownAction(actionID string) *Failure {
	return &Failure{Kind: KindUnknownAction, ActionID: actionID, Message: fmt.Sprintf("unknown action %q", actionID)}
}

func notLearned(actionID string) *Failure {
	return &Failure{Kind: KindNotLearned, ActionID: actionID, Message: fmt.Sprintf("action %q not learned", actionID)}
}

func levelTooLow(actionID string, required int) *Failure {
	return &Failure{Kind: KindLevelTooLow, ActionID: actionID, RequiredLevel: required,
		Message: fmt.Sprintf("action %q requires level %d", actionID, required)}
}

func insufficientResource(actionID, res string, need, have float64) *Failure {
	return &Failure{Kind: KindInsufficientResource, ActionID: actionID, Resource: res, Need: need, Have: have,
		Message: fmt.Sprintf("action %q needs %v %s, have %v", actionID, need, res, have)}
}

func onCooldown(actionID string, remaining time.Duration) *Failure {
	return &Failure{Kind: KindOnCooldown, ActionID: actionID, Remaining: remaining,
		Message: fmt.Sprintf("action %q ready in %.1fs", actionID, remaining.Seconds())}
}

func sharedDelayActive(actionID, category string, remaining time.Duration) *Failure {
	return &Failure{Kind: KindSharedDelayActive, ActionID: actionID, Category: category, Remaining: remaining,
		Message: fmt.Sprintf("%s actions ready in %.1fs", category, remaining.Seconds())}
}

func noSuchTarget(hint string) *Failure {
	return &Failure{Kind: KindNoSuchTarget, Target: hint, Message: fmt.Sprintf("no %q here", hint)}
}

func invalidTargetRelationship(targetID string, want Targeting) *Failure {
	return &Failure{Kind: KindInvalidTargetRelationship, Target: targetID,
		Message: fmt.Sprintf("%s is not a valid %s target", targetID, want)}
}

func noValidTarget(actionID string) *Failure {
	return &Failure{Kind: KindNoValidTarget, ActionID: actionID, Message: fmt.Sprintf("action %q has no valid target", actionID)}
}

func unknownEffect(actionID, effect string) *Failure {
	return &Failure{Kind: KindUnknownEffect, ActionID: actionID, Effect: effect,
		Message: fmt.Sprintf("action %q references unregistered effect %q", actionID, effect)}
}

func fizzled(actionID, effect string, cause error) *Failure {
	return &Failure{Kind: KindFizzled, ActionID: actionID, Effect: effect, Cause: cause,
		Message: fmt.Sprintf("action %q fizzled", actionID)}
}
