package ability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/actioncore/internal/game/combat"
	"github.com/cory-johannsen/actioncore/internal/game/dice"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
)

// Built-in effect routine names.
const (
	EffectMeleeStrike     = "melee_strike"
	EffectAreaStrike      = "area_strike"
	EffectApplyBuff       = "apply_buff"
	EffectPassiveBuff     = "passive_buff"
	EffectRestoreResource = "restore_resource"
)

const defaultStrikeDice = "1d4"

func registerBuiltins(r *EffectRegistry) {
	r.Register(EffectMeleeStrike, meleeStrike)
	r.Register(EffectAreaStrike, areaStrike)
	r.Register(EffectApplyBuff, applyBuff)
	r.Register(EffectPassiveBuff, passiveBuff)
	r.Register(EffectRestoreResource, restoreResource)
}

// meleeStrike makes one attack against each target.
// Params: accuracy (stat, default strength), auto_hit (bool).
func meleeStrike(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error) {
	res, err := strike(ec, caster, targets, tmpl, false)
	if err != nil {
		return Result{}, err
	}
	res.Success = len(res.Affected) > 0
	return res, nil
}

// areaStrike attacks every non-friendly target separately. With nobody to hit
// it still succeeds, with zero magnitude.
func areaStrike(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error) {
	res, err := strike(ec, caster, targets, tmpl, true)
	if err != nil {
		return Result{}, err
	}
	res.Success = true
	if len(res.Affected) == 0 && len(targets) == 0 {
		res.Summary = fmt.Sprintf("%s uses %s, but there is no one to hit.", caster.Name, tmpl.Name)
	}
	return res, nil
}

func strike(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template, skipFriendly bool) (Result, error) {
	expr, err := dice.Parse(orDefault(tmpl.Dice, defaultStrikeDice))
	if err != nil {
		return Result{}, fmt.Errorf("action %q damage: %w", tmpl.ID, err)
	}
	autoHit, err := boolParam(tmpl, "auto_hit")
	if err != nil {
		return Result{}, err
	}
	accuracy := ec.CasterStats[tmpl.Param("accuracy", "strength")]
	bonus := tmpl.Scaling.Bonus(ec.CasterStats, ec.CasterLevel)

	var res Result
	var parts []string
	for _, t := range targets {
		if skipFriendly && ec.Relation(t) == entity.Friendly {
			continue
		}
		attack, err := combat.ResolveStrike(combat.Strike{
			AttackerID: caster.ID,
			TargetID:   t.ID,
			Level:      ec.CasterLevel,
			Accuracy:   accuracy,
			Defense:    ec.TargetStat(t, "defense", combat.DefaultDefense),
			Damage:     expr,
			Bonus:      bonus,
			AutoHit:    autoHit,
		}, ec.Roller)
		if err != nil {
			return Result{}, err
		}
		ec.Logger.Debug("strike resolved",
			zap.String("attempt_id", ec.AttemptID),
			zap.String("attacker", caster.ID),
			zap.String("target", t.ID),
			zap.Int("attack_total", attack.AttackTotal),
			zap.String("outcome", attack.Outcome.String()),
			zap.Float64("damage", attack.EffectiveDamage()),
		)
		if attack.Outcome.Multiplier() == 0 {
			parts = append(parts, fmt.Sprintf("misses %s", t.Name))
			continue
		}
		applied, ok := ec.Damage(t, attack.EffectiveDamage())
		if !ok {
			parts = append(parts, fmt.Sprintf("cannot harm %s", t.Name))
			continue
		}
		res.Amount += applied
		res.Affected = append(res.Affected, t.ID)
		parts = append(parts, fmt.Sprintf("hits %s for %g (%s)", t.Name, applied, attack.Outcome))
	}
	if len(parts) == 0 {
		res.Summary = fmt.Sprintf("%s uses %s on nothing.", caster.Name, tmpl.Name)
	} else {
		res.Summary = fmt.Sprintf("%s uses %s and %s.", caster.Name, tmpl.Name, strings.Join(parts, ", "))
	}
	return res, nil
}

// applyBuff applies the condition named by the "condition" param to every
// target. Params: condition (required), stacks (default 1).
func applyBuff(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error) {
	return buffTargets(ec, caster, targets, tmpl)
}

// passiveBuff applies its condition only while the caster meets a trigger.
// Params: condition, when (always | health_below), threshold (fraction, default 0.5).
func passiveBuff(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error) {
	met, err := triggerMet(ec, caster, tmpl)
	if err != nil {
		return Result{}, err
	}
	if !met {
		return Result{Summary: fmt.Sprintf("%s has no effect right now.", tmpl.Name)}, nil
	}
	return buffTargets(ec, caster, targets, tmpl)
}

func triggerMet(ec *ExecContext, caster *entity.Entity, tmpl *Template) (bool, error) {
	switch when := tmpl.Param("when", "always"); when {
	case "always":
		return true, nil
	case "health_below":
		threshold, err := strconv.ParseFloat(tmpl.Param("threshold", "0.5"), 64)
		if err != nil {
			return false, fmt.Errorf("action %q threshold: %w", tmpl.ID, err)
		}
		return ec.HealthFraction(caster) < threshold, nil
	default:
		return false, fmt.Errorf("action %q: unknown trigger %q", tmpl.ID, when)
	}
}

func buffTargets(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error) {
	cond := tmpl.Param("condition", "")
	if cond == "" {
		return Result{}, fmt.Errorf("action %q: condition param is required", tmpl.ID)
	}
	stacks, err := strconv.Atoi(tmpl.Param("stacks", "1"))
	if err != nil {
		return Result{}, fmt.Errorf("action %q stacks: %w", tmpl.ID, err)
	}
	var res Result
	var names []string
	for _, t := range targets {
		if err := ec.ApplyCondition(t, cond, stacks); err != nil {
			ec.Logger.Debug("condition not applied",
				zap.String("attempt_id", ec.AttemptID),
				zap.String("target", t.ID),
				zap.String("condition", cond),
				zap.Error(err),
			)
			continue
		}
		res.Affected = append(res.Affected, t.ID)
		names = append(names, t.Name)
	}
	if len(res.Affected) == 0 {
		res.Summary = fmt.Sprintf("%s uses %s, to no effect.", caster.Name, tmpl.Name)
		return res, nil
	}
	res.Success = true
	res.Secondary = []string{cond}
	res.Summary = fmt.Sprintf("%s uses %s on %s.", caster.Name, tmpl.Name, strings.Join(names, ", "))
	return res, nil
}

// restoreResource restores dice + scaling bonus of the "resource" param
// (default health) to every target.
func restoreResource(ec *ExecContext, caster *entity.Entity, targets []*entity.Entity, tmpl *Template) (Result, error) {
	res := tmpl.Param("resource", HealthResource)
	amount := tmpl.Scaling.Bonus(ec.CasterStats, ec.CasterLevel)
	if tmpl.Dice != "" {
		expr, err := dice.Parse(tmpl.Dice)
		if err != nil {
			return Result{}, fmt.Errorf("action %q restore: %w", tmpl.ID, err)
		}
		roll, err := ec.Roller.Roll(expr)
		if err != nil {
			return Result{}, err
		}
		amount += float64(roll.Total())
	}
	if amount < 0 {
		amount = 0
	}

	var out Result
	var parts []string
	for _, t := range targets {
		applied, ok := ec.Restore(t, res, amount)
		if !ok {
			continue
		}
		out.Amount += applied
		out.Affected = append(out.Affected, t.ID)
		parts = append(parts, fmt.Sprintf("%s recovers %g %s", t.Name, applied, res))
	}
	out.Success = len(out.Affected) > 0
	if !out.Success {
		out.Summary = fmt.Sprintf("%s uses %s, to no effect.", caster.Name, tmpl.Name)
	} else {
		out.Summary = strings.Join(parts, ", ") + "."
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolParam(tmpl *Template, key string) (bool, error) {
	v := tmpl.Param(key, "false")
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Join(fmt.Errorf("action %q param %s", tmpl.ID, key), err)
	}
	return b, nil
}
