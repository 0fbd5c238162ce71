package ability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/character"
	"github.com/cory-johannsen/actioncore/internal/game/combat"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/resource"
	"github.com/cory-johannsen/actioncore/internal/observability"
)

// Request is one attempt to perform an action.
type Request struct {
	ActorID  string
	ActionID string
	// TargetHint is the caller's free-text target name or entity ID.
	TargetHint string
	// At is the attempt time; zero uses the executor clock.
	At time.Time
}

// Outcome is the terminal result of one attempt.
type Outcome struct {
	AttemptID  string
	ActorID    string
	ActionID   string
	Generation uint64
	Targets    []string
	Result     Result
	// Failure is nil when the action was performed. A Fizzled failure means
	// costs and timers were applied.
	Failure       *Failure
	Notifications []Notification
}

// Performed reports whether the effect ran to completion.
func (o Outcome) Performed() bool { return o.Failure == nil }

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the time source for requests without At.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithPublisher sends every outcome's notifications to p.
func WithPublisher(p Publisher) Option {
	return func(e *Executor) { e.publisher = p }
}

// WithMetrics records attempts on m.
func WithMetrics(m *observability.ActionMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithResolver replaces the default target resolver.
func WithResolver(r *Resolver) Option {
	return func(e *Executor) { e.resolver = r }
}

// Executor validates, pays for, dispatches, and times action attempts.
//
// For one actor, validation, cost deduction, and timer updates run inside the
// actor sheet's exclusive section, so a later attempt always observes the
// costs and timers of an earlier one. The effect routine runs after the
// section is released and locks each target on its own.
type Executor struct {
	catalog   *Catalog
	effects   *EffectRegistry
	dir       Directory
	resolver  *Resolver
	roller    combat.Roller
	publisher Publisher
	metrics   *observability.ActionMetrics
	rewards   RewardFunc
	logger    *zap.Logger
	clock     func() time.Time
}

// NewExecutor creates an Executor.
//
// Precondition: catalog, effects, dir, roller, and logger must be non-nil.
func NewExecutor(catalog *Catalog, effects *EffectRegistry, dir Directory, roller combat.Roller, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		catalog:   catalog,
		effects:   effects,
		dir:       dir,
		roller:    roller,
		publisher: Discard,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = NewResolver(dir, nil, nil)
	}
	return e
}

// Catalog returns the executor's catalog.
func (e *Executor) Catalog() *Catalog { return e.catalog }

type attempt struct {
	req       Request
	now       time.Time
	snap      *Snapshot
	actor     *entity.Entity
	tmpl      *Template
	targets   []*entity.Entity
	routine   Routine
	stats     map[string]int
	level     int
	commits   []Notification
	attemptID string
}

// Execute runs one attempt to completion. Validation failures return an
// Outcome whose Failure names the first failed check and leave every pool and
// timer untouched.
//
// Postcondition: Exactly one action_performed or action_failed notification
// is included and published.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	began := time.Now()
	a := &attempt{req: req, now: req.At, snap: e.catalog.Snapshot(), attemptID: uuid.NewString()}
	if a.now.IsZero() {
		a.now = e.clock()
	}
	out := Outcome{
		AttemptID:  a.attemptID,
		ActorID:    req.ActorID,
		ActionID:   req.ActionID,
		Generation: a.snap.Generation(),
	}

	if f := e.prepare(a); f != nil {
		if f.ActionID == "" {
			f.ActionID = req.ActionID
		}
		out.Failure = f
		out.Notifications = []Notification{e.failedNotification(a, f)}
		e.logger.Debug("action rejected",
			zap.String("attempt_id", a.attemptID),
			zap.String("actor", req.ActorID),
			zap.String("action", req.ActionID),
			zap.String("kind", string(f.Kind)),
			zap.String("reason", f.Error()),
		)
		if e.metrics != nil {
			e.metrics.RecordFailed(ctx, req.ActionID, string(f.Kind))
		}
		e.publish(out.Notifications)
		return out
	}

	out.Targets = entityIDs(a.targets)
	ec := &ExecContext{
		Context:     ctx,
		AttemptID:   a.attemptID,
		Now:         a.now,
		Roller:      e.roller,
		Conditions:  a.snap.Conditions(),
		CasterStats: a.stats,
		CasterLevel: a.level,
		Relations:   e.resolver.Relation(),
		Logger:      e.logger,
		caster:      a.actor,
	}
	res, err := e.dispatch(ec, a)
	if err != nil {
		f := fizzled(a.tmpl.ID, a.tmpl.Effect, err)
		out.Failure = f
		out.Notifications = append([]Notification{e.failedNotification(a, f)}, a.commits...)
		out.Notifications = append(out.Notifications, ec.Changes()...)
		out.Notifications = append(out.Notifications, e.settleDefeats(ec, a)...)
		if e.metrics != nil {
			e.metrics.RecordFizzled(ctx, a.tmpl.ID)
		}
		e.publish(out.Notifications)
		return out
	}

	res.Secondary = e.applySecondary(ec, a, res)
	out.Result = res
	performed := Notification{
		Kind:      ActionPerformed,
		AttemptID: a.attemptID,
		EntityID:  a.actor.ID,
		ActionID:  a.tmpl.ID,
		At:        a.now,
		Targets:   out.Targets,
		Amount:    res.Amount,
		Secondary: res.Secondary,
		Summary:   res.Summary,
		Success:   res.Success,
	}
	out.Notifications = append([]Notification{performed}, a.commits...)
	out.Notifications = append(out.Notifications, ec.Changes()...)
	out.Notifications = append(out.Notifications, e.settleDefeats(ec, a)...)
	e.logger.Debug("action performed",
		zap.String("attempt_id", a.attemptID),
		zap.String("actor", a.actor.ID),
		zap.String("action", a.tmpl.ID),
		zap.Strings("targets", out.Targets),
		zap.Float64("amount", res.Amount),
		zap.Uint64("generation", a.snap.Generation()),
	)
	if e.metrics != nil {
		e.metrics.RecordPerformed(ctx, a.tmpl.ID, time.Since(began))
	}
	e.publish(out.Notifications)
	return out
}

// prepare runs the validation steps in order and, when all pass, commits the
// cost and timers inside the actor's exclusive section.
func (e *Executor) prepare(a *attempt) *Failure {
	actor, ok := e.dir.Get(a.req.ActorID)
	if !ok {
		return notParticipating(a.req.ActorID)
	}
	sheet := actor.Sheet()
	if sheet == nil {
		return notParticipating(a.req.ActorID)
	}
	a.actor = actor

	tmpl, err := a.snap.Get(a.req.ActionID)
	if err != nil {
		return unknownAction(a.req.ActionID)
	}
	a.tmpl = tmpl

	sheet.Lock()
	defer sheet.Unlock()

	if !sheet.IsUnlocked(tmpl.ID) || (tmpl.Archetype != "" && tmpl.Archetype != sheet.Archetype.ID) {
		return notLearned(tmpl.ID)
	}
	if sheet.Level < tmpl.MinLevel {
		return levelTooLow(tmpl.ID, tmpl.MinLevel)
	}
	if sf, short := resource.FirstShortfall(sheet.Pools, tmpl.Cost); short {
		return insufficientResource(tmpl.ID, sf.Resource, sf.Need, sf.Have)
	}
	if rem := sheet.CooldownRemaining(tmpl.ID, tmpl.Cooldown, a.now); rem > 0 {
		return onCooldown(tmpl.ID, rem)
	}
	if cat := tmpl.SharedCategory(); cat != "" {
		if rem := sheet.SharedDelayRemaining(cat, a.now); rem > 0 {
			return sharedDelayActive(tmpl.ID, cat, rem)
		}
	}
	targets, f := e.resolver.Resolve(actor, tmpl, a.req.TargetHint)
	if f != nil {
		f.ActionID = tmpl.ID
		return f
	}
	if tmpl.RequiresTarget && tmpl.Targeting.Single() && len(targets) == 0 {
		return noValidTarget(tmpl.ID)
	}
	a.targets = targets

	routine, err := e.effects.Get(tmpl.Effect)
	if err != nil {
		e.logger.Error("action references unregistered effect",
			zap.String("attempt_id", a.attemptID),
			zap.String("action", tmpl.ID),
			zap.String("effect", tmpl.Effect),
			zap.Uint64("generation", a.snap.Generation()),
		)
		return unknownEffect(tmpl.ID, tmpl.Effect)
	}
	a.routine = routine

	if sf, ok := resource.PayAll(sheet.Pools, tmpl.Cost); !ok {
		return insufficientResource(tmpl.ID, sf.Resource, sf.Need, sf.Have)
	}
	for _, c := range tmpl.Cost {
		a.commits = append(a.commits, resourceChanged(a.attemptID, actor.ID, sheet.Pools[c.Resource], a.now))
	}
	e.startTimers(sheet, a)
	a.stats = sheet.EffectiveStats()
	a.level = sheet.Level
	return nil
}

func (e *Executor) startTimers(sheet *character.Sheet, a *attempt) {
	sheet.RecordUse(a.tmpl.ID, a.now)
	if a.tmpl.Cooldown > 0 {
		a.commits = append(a.commits, Notification{
			Kind:      CooldownStarted,
			AttemptID: a.attemptID,
			EntityID:  a.actor.ID,
			ActionID:  a.tmpl.ID,
			Duration:  a.tmpl.Cooldown,
			At:        a.now,
		})
	}
	if cat := a.tmpl.SharedCategory(); cat != "" {
		sheet.StartSharedDelay(cat, a.now, a.tmpl.SharedDelay.Duration)
		a.commits = append(a.commits, Notification{
			Kind:      SharedDelayStarted,
			AttemptID: a.attemptID,
			EntityID:  a.actor.ID,
			ActionID:  a.tmpl.ID,
			Category:  cat,
			Duration:  a.tmpl.SharedDelay.Duration,
			At:        a.now,
		})
	}
}

// dispatch runs the routine, converting a panic into an error.
func (e *Executor) dispatch(ec *ExecContext, a *attempt) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect %q panicked: %v", a.tmpl.Effect, r)
			e.logger.Error("effect routine panicked",
				zap.String("attempt_id", a.attemptID),
				zap.String("actor", a.actor.ID),
				zap.String("action", a.tmpl.ID),
				zap.String("effect", a.tmpl.Effect),
				zap.Strings("targets", entityIDs(a.targets)),
				zap.Uint64("generation", a.snap.Generation()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	res, err = a.routine(ec, a.actor, a.targets, a.tmpl)
	if err != nil {
		e.logger.Error("effect routine failed",
			zap.String("attempt_id", a.attemptID),
			zap.String("actor", a.actor.ID),
			zap.String("action", a.tmpl.ID),
			zap.String("effect", a.tmpl.Effect),
			zap.Strings("targets", entityIDs(a.targets)),
			zap.Uint64("generation", a.snap.Generation()),
			zap.Error(err),
		)
	}
	return res, err
}

// applySecondary applies the template's secondary conditions to every affected
// entity and returns the merged list of applied condition IDs.
func (e *Executor) applySecondary(ec *ExecContext, a *attempt, res Result) []string {
	applied := append([]string(nil), res.Secondary...)
	if len(a.tmpl.SecondaryEffects) == 0 || len(res.Affected) == 0 {
		return applied
	}
	seen := make(map[string]bool, len(applied))
	for _, id := range applied {
		seen[id] = true
	}
	for _, cond := range a.tmpl.SecondaryEffects {
		for _, id := range res.Affected {
			target := findEntity(a.targets, id)
			if target == nil {
				var ok bool
				if target, ok = e.dir.Get(id); !ok {
					continue
				}
			}
			if err := ec.ApplyCondition(target, cond, 1); err != nil {
				e.logger.Debug("secondary effect not applied",
					zap.String("attempt_id", a.attemptID),
					zap.String("target", id),
					zap.String("condition", cond),
					zap.Error(err),
				)
				continue
			}
			if !seen[cond] {
				seen[cond] = true
				applied = append(applied, cond)
			}
		}
	}
	return applied
}

func (e *Executor) failedNotification(a *attempt, f *Failure) Notification {
	return Notification{
		Kind:      ActionFailed,
		AttemptID: a.attemptID,
		EntityID:  a.req.ActorID,
		ActionID:  a.req.ActionID,
		At:        a.now,
		Failure:   f,
	}
}

func (e *Executor) publish(ns []Notification) {
	for _, n := range ns {
		e.publisher.Publish(n)
	}
}

func entityIDs(es []*entity.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func findEntity(es []*entity.Entity, id string) *entity.Entity {
	for _, e := range es {
		if e.ID == id {
			return e
		}
	}
	return nil
}
