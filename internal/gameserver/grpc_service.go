package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/actioncore/internal/game/ability"
	"github.com/cory-johannsen/actioncore/internal/game/character"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
	"github.com/cory-johannsen/actioncore/internal/game/session"
)

// SheetStore persists player sheets between connections.
//
// Postcondition: Load returns (snapshot, true, nil) when a sheet was saved for
// entityID and (zero, false, nil) when none was.
type SheetStore interface {
	Load(ctx context.Context, entityID string) (character.SheetSnapshot, bool, error)
	Save(ctx context.Context, entityID string, snap character.SheetSnapshot) error
}

// IdentityResolver maps a username to the stable entity ID its sheet is saved
// under, creating the mapping on first use.
type IdentityResolver interface {
	ResolveEntity(ctx context.Context, username string) (string, error)
}

// ReloadFunc re-reads action content into the catalog, returning the
// generation now serving and how many actions it holds.
type ReloadFunc func(ctx context.Context) (generation uint64, count int, err error)

// ContentReloader returns a ReloadFunc that reloads the catalog from dir.
// Archetype changes in dir are not applied to live sheets.
func ContentReloader(catalog *ability.Catalog, dir string) ReloadFunc {
	return func(ctx context.Context) (uint64, int, error) {
		content, err := ability.LoadContent(dir)
		if err != nil {
			return catalog.Snapshot().Generation(), catalog.Snapshot().Len(), err
		}
		gen, err := catalog.Reload(content.Actions, content.Conditions)
		return gen, catalog.Snapshot().Len(), err
	}
}

// AbilityService implements the AbilityService gRPC API.
type AbilityService struct {
	handler    *AbilityHandler
	exec       *ability.Executor
	sessions   *session.Manager
	archetypes *ruleset.ArchetypeRegistry
	store      SheetStore
	reload     ReloadFunc
	identities IdentityResolver
	clock      func() time.Time
	logger     *zap.Logger
}

// NewAbilityService creates an AbilityService.
//
// Precondition: handler, exec, sessions, archetypes, and logger must be non-nil.
// store may be nil (sheets are not persisted); reload may be nil (ReloadCatalog
// returns Unimplemented).
func NewAbilityService(
	handler *AbilityHandler,
	exec *ability.Executor,
	sessions *session.Manager,
	archetypes *ruleset.ArchetypeRegistry,
	store SheetStore,
	reload ReloadFunc,
	logger *zap.Logger,
) *AbilityService {
	return &AbilityService{
		handler:    handler,
		exec:       exec,
		sessions:   sessions,
		archetypes: archetypes,
		store:      store,
		reload:     reload,
		clock:      time.Now,
		logger:     logger,
	}
}

// WithIdentities makes Connect requests without an entity_id resume the
// entity previously bound to their username.
func (s *AbilityService) WithIdentities(r IdentityResolver) *AbilityService {
	s.identities = r
	return s
}

// Perform executes one action. Action failures are returned inside the
// response; only a malformed request is a transport error.
func (s *AbilityService) Perform(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, action := field(req, "actor_id"), field(req, "action_id")
	if actor == "" || action == "" {
		return nil, status.Error(codes.InvalidArgument, "actor_id and action_id are required")
	}
	out := s.handler.Perform(ctx, actor, action, field(req, "target"))
	return OutcomeStruct(out), nil
}

// ListActions returns the status of every action the actor has unlocked.
func (s *AbilityService) ListActions(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor := field(req, "actor_id")
	if actor == "" {
		return nil, status.Error(codes.InvalidArgument, "actor_id is required")
	}
	statuses, f := s.exec.Statuses(actor, s.clock())
	if f != nil {
		return nil, f.GRPCStatus().Err()
	}
	list := make([]*structpb.Value, len(statuses))
	for i, st := range statuses {
		list[i] = structpb.NewStructValue(statusStruct(st))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"actions": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}, nil
}

// ReloadCatalog re-reads the action content. A failed reload keeps the
// previous generation serving and is reported as FailedPrecondition.
func (s *AbilityService) ReloadCatalog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.reload == nil {
		return nil, status.Error(codes.Unimplemented, "catalog reload is not configured")
	}
	gen, count, err := s.reload(ctx)
	if err != nil {
		s.logger.Warn("catalog reload rejected", zap.Uint64("generation", gen), zap.Error(err))
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	s.logger.Info("catalog reloaded", zap.Uint64("generation", gen), zap.Int("actions", count))
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"generation": structpb.NewNumberValue(float64(gen)),
		"actions":    structpb.NewNumberValue(float64(count)),
	}}, nil
}

// Command runs one line of text input for a connected player.
func (s *AbilityService) Command(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := field(req, "entity_id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "player %q is not connected", id)
	}
	reply, err := s.handler.Handle(ctx, id, field(req, "line"))
	quit := errors.Is(err, ErrQuit)
	if err != nil && !quit {
		if f, ok := ability.AsFailure(err); ok {
			return nil, f.GRPCStatus().Err()
		}
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	if quit {
		// Closing the bridge ends the caller's Connect stream.
		s.Disconnect(sess)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"reply": structpb.NewStringValue(reply),
		"quit":  structpb.NewBoolValue(quit),
	}}, nil
}

// JoinRequest describes a player entering the world.
type JoinRequest struct {
	Username string
	// EntityID resumes a saved sheet. Empty resolves it from Username when an
	// IdentityResolver is configured, otherwise a fresh ID is generated.
	EntityID string
	// Name defaults to Username.
	Name string
	// Archetype is used only when no saved sheet exists.
	Archetype string
	Team      string
	Location  string
}

// Join builds or restores the player's sheet and joins them at req.Location.
// Errors carry gRPC status codes.
//
// Postcondition: On success the player is in the session manager and the
// entity directory; the caller must eventually call Disconnect.
func (s *AbilityService) Join(ctx context.Context, req JoinRequest) (*session.PlayerSession, error) {
	if req.Username == "" || req.Location == "" {
		return nil, status.Error(codes.InvalidArgument, "username and location are required")
	}
	id := req.EntityID
	if id == "" && s.identities != nil {
		resolved, err := s.identities.ResolveEntity(ctx, req.Username)
		if err != nil {
			s.logger.Error("resolving entity", zap.String("username", req.Username), zap.Error(err))
			return nil, status.Error(codes.Unavailable, "identity lookup failed")
		}
		id = resolved
	}
	if id == "" {
		id = uuid.NewString()
	}
	name := req.Name
	if name == "" {
		name = req.Username
	}

	sheet, err := s.loadSheet(ctx, id, req.Archetype)
	if err != nil {
		return nil, err
	}
	ent := entity.New(id, name, entity.KindPlayer, req.Team)
	ent.AttachSheet(sheet)
	sess, err := s.sessions.Join(req.Username, ent, req.Location, s.clock())
	if err != nil {
		return nil, status.Error(codes.AlreadyExists, err.Error())
	}
	s.logger.Info("player connected",
		zap.String("entity", id),
		zap.String("username", req.Username),
		zap.String("location", req.Location),
	)
	return sess, nil
}

// Connect joins a player to the world and streams every notification pushed
// to their bridge until the client goes away or the player quits.
// Flow:
//  1. Build or restore the player's sheet
//  2. Join the session manager at the requested location
//  3. Send a "connected" event
//  4. Forward bridge events to the stream
//  5. On exit: leave and persist the sheet
func (s *AbilityService) Connect(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	sess, err := s.Join(ctx, JoinRequest{
		Username:  field(req, "username"),
		EntityID:  field(req, "entity_id"),
		Name:      field(req, "name"),
		Archetype: field(req, "archetype"),
		Team:      field(req, "team"),
		Location:  field(req, "location"),
	})
	if err != nil {
		return err
	}
	defer s.Disconnect(sess)

	if err := stream.SendMsg(&structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":      structpb.NewStringValue("connected"),
		"entity_id": structpb.NewStringValue(sess.ID()),
		"location":  structpb.NewStringValue(field(req, "location")),
		"archetype": structpb.NewStringValue(sess.Entity.Sheet().Archetype.ID),
	}}); err != nil {
		return fmt.Errorf("sending connected event: %w", err)
	}
	return s.forwardEvents(ctx, sess.Bridge, stream)
}

// SaveAll persists the sheet of every connected player and returns how many
// were saved.
func (s *AbilityService) SaveAll(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	saved := 0
	var errs []error
	for _, sess := range s.sessions.All() {
		sheet := sess.Entity.Sheet()
		if sheet == nil {
			continue
		}
		if err := s.store.Save(ctx, sess.ID(), sheet.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("saving %q: %w", sess.ID(), err))
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func (s *AbilityService) loadSheet(ctx context.Context, id, archetypeID string) (*character.Sheet, error) {
	now := s.clock()
	if s.store != nil {
		snap, found, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "loading sheet: %v", err)
		}
		if found {
			arch, ok := s.archetypes.Get(snap.ArchetypeID)
			if !ok {
				return nil, status.Errorf(codes.FailedPrecondition, "saved archetype %q no longer exists", snap.ArchetypeID)
			}
			sheet, err := character.Restore(arch, snap, now)
			if err != nil {
				return nil, status.Errorf(codes.DataLoss, "restoring sheet: %v", err)
			}
			return sheet, nil
		}
	}
	arch, ok := s.archetypes.Get(archetypeID)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown archetype %q", archetypeID)
	}
	sheet, err := character.NewSheet(arch, now)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	for i, actionID := range sheet.Unlocked() {
		if i >= len(sheet.Slots) {
			break
		}
		_ = sheet.Equip(i, actionID)
	}
	return sheet, nil
}

// Disconnect removes the player if still present and saves their sheet.
// Safe to call after the player already left through "quit".
func (s *AbilityService) Disconnect(sess *session.PlayerSession) {
	id := sess.ID()
	if current, ok := s.sessions.Get(id); !ok || current != sess {
		s.logger.Debug("already disconnected", zap.String("entity", id))
		return
	}
	// Leave detaches the sheet from the entity.
	sheet := sess.Entity.Sheet()
	if err := s.sessions.Leave(id); err != nil {
		s.logger.Debug("leaving on disconnect", zap.String("entity", id), zap.Error(err))
	}
	if s.store != nil && sheet != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Save(ctx, id, sheet.Snapshot()); err != nil {
			s.logger.Warn("saving sheet on disconnect", zap.String("entity", id), zap.Error(err))
		} else {
			s.logger.Info("sheet saved", zap.String("entity", id))
		}
	}
	s.logger.Info("player disconnected", zap.String("entity", id), zap.String("username", sess.Username))
}

// Handler returns the command handler serving this service.
func (s *AbilityService) Handler() *AbilityHandler { return s.handler }

// forwardEvents reads from the bridge and sends each decoded event on stream.
// It returns nil when the bridge closes.
func (s *AbilityService) forwardEvents(ctx context.Context, bridge *session.Bridge, stream grpc.ServerStream) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-bridge.Events():
			if !ok {
				return nil
			}
			evt, err := DecodeEvent(data)
			if err != nil {
				s.logger.Error("decoding bridge event", zap.Error(err))
				continue
			}
			if err := stream.SendMsg(evt); err != nil {
				s.logger.Debug("forward event send failed", zap.Error(err))
				return err
			}
		}
	}
}

// OutcomeStruct converts an executor outcome to its wire form.
func OutcomeStruct(out ability.Outcome) *structpb.Struct {
	f := map[string]*structpb.Value{
		"attempt_id": structpb.NewStringValue(out.AttemptID),
		"actor_id":   structpb.NewStringValue(out.ActorID),
		"action_id":  structpb.NewStringValue(out.ActionID),
		"generation": structpb.NewNumberValue(float64(out.Generation)),
		"targets":    stringList(out.Targets),
		"performed":  structpb.NewBoolValue(out.Performed()),
		"message":    structpb.NewStringValue(RenderOutcome(out)),
	}
	if out.Failure != nil {
		f["failure"] = structpb.NewStructValue(FailureStruct(out.Failure))
	} else {
		f["result"] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"success":   structpb.NewBoolValue(out.Result.Success),
			"amount":    structpb.NewNumberValue(out.Result.Amount),
			"summary":   structpb.NewStringValue(out.Result.Summary),
			"affected":  stringList(out.Result.Affected),
			"secondary": stringList(out.Result.Secondary),
		}})
	}
	ns := make([]*structpb.Value, len(out.Notifications))
	for i, n := range out.Notifications {
		ns[i] = structpb.NewStructValue(NotificationStruct(n))
	}
	f["notifications"] = structpb.NewListValue(&structpb.ListValue{Values: ns})
	return &structpb.Struct{Fields: f}
}

func statusStruct(st ability.ActionStatus) *structpb.Struct {
	f := map[string]*structpb.Value{
		"action_id":          structpb.NewStringValue(st.ActionID),
		"name":               structpb.NewStringValue(st.Name),
		"slot":               structpb.NewNumberValue(float64(st.Slot)),
		"cooldown_seconds":   structpb.NewNumberValue(st.Cooldown.Seconds()),
		"cooldown_remaining": structpb.NewNumberValue(st.CooldownRemaining.Seconds()),
		"affordable":         structpb.NewBoolValue(st.Affordable),
		"known":              structpb.NewBoolValue(st.Known),
		"ready":              structpb.NewBoolValue(st.Ready()),
	}
	if st.SharedCategory != "" {
		f["shared_category"] = structpb.NewStringValue(st.SharedCategory)
		f["shared_remaining"] = structpb.NewNumberValue(st.SharedRemaining.Seconds())
	}
	if st.Known && !st.Affordable {
		f["short_resource"] = structpb.NewStringValue(st.Shortfall.Resource)
	}
	return &structpb.Struct{Fields: f}
}

func field(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}
