package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/command"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// ErrQuit is returned by Handle when the player asked to disconnect.
var ErrQuit = errors.New("quit")

// AbilityHandler resolves text commands into executor calls and sheet
// operations for one acting entity.
type AbilityHandler struct {
	exec     *ability.Executor
	dir      *entity.Manager
	commands *command.Registry
	clock    func() time.Time
	logger   *zap.Logger
}

// NewAbilityHandler creates an AbilityHandler.
//
// Precondition: exec, dir, commands, and logger must be non-nil.
func NewAbilityHandler(exec *ability.Executor, dir *entity.Manager, commands *command.Registry, logger *zap.Logger) *AbilityHandler {
	if exec == nil || dir == nil || commands == nil || logger == nil {
		panic("gameserver.NewAbilityHandler: all dependencies must be non-nil")
	}
	return &AbilityHandler{exec: exec, dir: dir, commands: commands, clock: time.Now, logger: logger}
}

// WithClock replaces the handler's clock. Used by tests.
func (h *AbilityHandler) WithClock(clock func() time.Time) *AbilityHandler {
	h.clock = clock
	return h
}

// Handle runs one line of input for entityID and returns the text reply.
//
// Postcondition: Returns ErrQuit for the quit command; any other error means
// entityID cannot act at all.
func (h *AbilityHandler) Handle(ctx context.Context, entityID, line string) (string, error) {
	in := command.Parse(line)
	if in.Command == "" {
		return "", nil
	}
	cmd, ok := h.commands.Resolve(in.Command)
	if !ok {
		return fmt.Sprintf("Unknown command %q. Type help for a list.", in.Command), nil
	}

	switch cmd.Handler {
	case command.HandlerHelp:
		return h.commands.HelpText(), nil
	case command.HandlerQuit:
		return "Goodbye.", ErrQuit
	case command.HandlerPerform:
		action, hint, err := command.ParsePerform(in.RawArgs)
		if err != nil {
			return "Perform what?", nil
		}
		out := h.Perform(ctx, entityID, action, hint)
		return RenderOutcome(out), nil
	case command.HandlerAbilities:
		statuses, f := h.exec.Statuses(entityID, h.clock())
		if f != nil {
			return "", f
		}
		return command.RenderStatuses(statuses), nil
	}

	ent, ok := h.dir.Get(entityID)
	if !ok || ent.Sheet() == nil {
		return "", fmt.Errorf("%s cannot use actions", entityID)
	}
	sheet := ent.Sheet()
	switch cmd.Handler {
	case command.HandlerEquip:
		return command.HandleEquip(sheet, in.RawArgs), nil
	case command.HandlerUnequip:
		return command.HandleUnequip(sheet, in.RawArgs), nil
	case command.HandlerLoadout:
		return command.HandleLoadout(sheet), nil
	case command.HandlerStatus:
		return command.HandleStatus(sheet, h.clock()), nil
	}
	return "", fmt.Errorf("command %q has no handler", cmd.Name)
}

// Perform executes actionID for entityID now.
func (h *AbilityHandler) Perform(ctx context.Context, entityID, actionID, hint string) ability.Outcome {
	out := h.exec.Execute(ctx, ability.Request{
		ActorID:    entityID,
		ActionID:   actionID,
		TargetHint: hint,
		At:         h.clock(),
	})
	h.logger.Debug("perform handled",
		zap.String("attempt_id", out.AttemptID),
		zap.String("entity", entityID),
		zap.String("action", actionID),
		zap.Bool("performed", out.Performed()),
	)
	return out
}

// RenderOutcome formats an outcome as a one-line reply to the actor. Effect
// summaries are already sentences and are returned as is.
func RenderOutcome(out ability.Outcome) string {
	if f := out.Failure; f != nil {
		switch f.Kind {
		case ability.KindFizzled:
			return fmt.Sprintf("Your %s fizzles.", out.ActionID)
		case ability.KindOnCooldown:
			return fmt.Sprintf("%s is on cooldown for %.1fs.", out.ActionID, f.Remaining.Seconds())
		case ability.KindSharedDelayActive:
			return fmt.Sprintf("You must wait %.1fs before another %s action.", f.Remaining.Seconds(), f.Category)
		case ability.KindInsufficientResource:
			return fmt.Sprintf("You need %v %s but have %v.", f.Need, f.Resource, f.Have)
		}
		msg := f.Error()
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	}

	if out.Result.Summary != "" {
		return out.Result.Summary
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You use %s", out.ActionID)
	if len(out.Targets) > 0 {
		fmt.Fprintf(&b, " on %s", strings.Join(out.Targets, ", "))
	}
	if !out.Result.Success {
		b.WriteString(", to no effect")
	}
	b.WriteByte('.')
	return b.String()
}
