package gameserver

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/session"
)

// BridgeLookup finds the bridge of a connected player. *session.Manager
// satisfies it.
type BridgeLookup interface {
	Bridge(id string) (*session.Bridge, bool)
}

// BridgePublisher is the ability.Publisher that delivers notifications to
// player bridges as marshaled structpb.Struct values. Entities without a
// bridge (NPCs, objects, departed players) are skipped.
type BridgePublisher struct {
	bridges BridgeLookup
	logger  *zap.Logger
}

// NewBridgePublisher creates a BridgePublisher.
//
// Precondition: bridges and logger must be non-nil.
func NewBridgePublisher(bridges BridgeLookup, logger *zap.Logger) *BridgePublisher {
	if bridges == nil || logger == nil {
		panic("gameserver.NewBridgePublisher: bridges and logger must be non-nil")
	}
	return &BridgePublisher{bridges: bridges, logger: logger}
}

// Publish encodes n once and pushes it to every recipient's bridge.
func (p *BridgePublisher) Publish(n ability.Notification) {
	data, err := proto.Marshal(NotificationStruct(n))
	if err != nil {
		p.logger.Error("marshaling notification", zap.String("kind", string(n.Kind)), zap.Error(err))
		return
	}
	for _, id := range Recipients(n) {
		b, ok := p.bridges.Bridge(id)
		if !ok {
			continue
		}
		if err := b.Push(data); err != nil {
			p.logger.Warn("push to bridge failed",
				zap.String("entity", id),
				zap.String("kind", string(n.Kind)),
				zap.Error(err),
			)
		}
	}
}

// Recipients returns the entities a notification concerns: the entity it is
// about, then each target of a performed action or the defeater of a
// defeated entity, without duplicates.
func Recipients(n ability.Notification) []string {
	out := []string{n.EntityID}
	if n.Kind != ability.ActionPerformed && n.Kind != ability.EntityDefeated {
		return out
	}
	for _, t := range n.Targets {
		dup := false
		for _, id := range out {
			if id == t {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}
	return out
}

// NotificationStruct converts n to its wire form. Only the fields relevant
// to n.Kind are present.
func NotificationStruct(n ability.Notification) *structpb.Struct {
	f := map[string]*structpb.Value{
		"kind":      structpb.NewStringValue(string(n.Kind)),
		"entity_id": structpb.NewStringValue(n.EntityID),
	}
	if n.AttemptID != "" {
		f["attempt_id"] = structpb.NewStringValue(n.AttemptID)
	}
	if n.ActionID != "" {
		f["action_id"] = structpb.NewStringValue(n.ActionID)
	}
	if !n.At.IsZero() {
		f["at"] = structpb.NewStringValue(n.At.UTC().Format(time.RFC3339Nano))
	}

	switch n.Kind {
	case ability.ActionPerformed:
		f["targets"] = stringList(n.Targets)
		f["amount"] = structpb.NewNumberValue(n.Amount)
		f["secondary"] = stringList(n.Secondary)
		f["summary"] = structpb.NewStringValue(n.Summary)
		f["success"] = structpb.NewBoolValue(n.Success)
	case ability.ActionFailed:
		if n.Failure != nil {
			f["failure"] = structpb.NewStructValue(FailureStruct(n.Failure))
		}
	case ability.ResourceChanged:
		f["resource"] = structpb.NewStringValue(n.Resource)
		f["current"] = structpb.NewNumberValue(n.Current)
		f["max"] = structpb.NewNumberValue(n.Max)
	case ability.CooldownStarted, ability.SharedDelayStarted:
		if n.Category != "" {
			f["category"] = structpb.NewStringValue(n.Category)
		}
		f["duration_seconds"] = structpb.NewNumberValue(n.Duration.Seconds())
	case ability.EntityDefeated:
		f["targets"] = stringList(n.Targets)
		f["experience"] = structpb.NewNumberValue(float64(n.Experience))
	case ability.LevelGained:
		f["level"] = structpb.NewNumberValue(float64(n.Level))
		f["learned"] = stringList(n.Learned)
		f["new_slots"] = structpb.NewNumberValue(float64(n.NewSlots))
	}
	return &structpb.Struct{Fields: f}
}

// FailureStruct converts a failure to its wire form: kind, message, and the
// kind-specific metadata.
func FailureStruct(fl *ability.Failure) *structpb.Struct {
	md := make(map[string]*structpb.Value, len(fl.Metadata()))
	for k, v := range fl.Metadata() {
		md[k] = structpb.NewStringValue(v)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":     structpb.NewStringValue(string(fl.Kind)),
		"message":  structpb.NewStringValue(fl.Error()),
		"metadata": structpb.NewStructValue(&structpb.Struct{Fields: md}),
	}}
}

// DecodeEvent unmarshals bytes pushed to a bridge.
func DecodeEvent(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &s, nil
}

func stringList(ss []string) *structpb.Value {
	vs := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vs[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vs})
}
