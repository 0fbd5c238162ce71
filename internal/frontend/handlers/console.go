// Package handlers runs play console sessions. A telnet client picks a name
// and archetype, joins the world, and types the same commands the Command RPC
// accepts while notifications stream back as colored text.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/actioncore/internal/frontend/telnet"
	"github.com/cory-johannsen/actioncore/internal/game/entity"
	"github.com/cory-johannsen/actioncore/internal/game/session"
	"github.com/cory-johannsen/actioncore/internal/gameserver"
)

// ConsoleTeam is the team every console player joins.
const ConsoleTeam = "players"

const maxAttempts = 3

var validName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{1,23}$`)

// ErrTooManyAttempts ends a session whose login prompts were answered badly
// maxAttempts times.
var ErrTooManyAttempts = errors.New("too many invalid answers")

// World admits and removes players. *gameserver.AbilityService satisfies it.
type World interface {
	Join(ctx context.Context, req gameserver.JoinRequest) (*session.PlayerSession, error)
	Disconnect(sess *session.PlayerSession)
}

// Commander runs one line of player input. *gameserver.AbilityHandler
// satisfies it.
type Commander interface {
	Handle(ctx context.Context, entityID, line string) (string, error)
}

// Directory resolves entity IDs to display names. *entity.Manager satisfies it.
type Directory interface {
	Get(id string) (*entity.Entity, bool)
}

// Console is the telnet.SessionHandler for play sessions.
type Console struct {
	world      World
	commands   Commander
	dir        Directory
	archetypes []string
	location   string
	logger     *zap.Logger
}

// NewConsole creates a Console that joins players at location.
//
// Precondition: archetypes must be non-empty; the first is the default
// choice. All other arguments must be non-nil.
func NewConsole(world World, commands Commander, dir Directory, archetypes []string, location string, logger *zap.Logger) *Console {
	if len(archetypes) == 0 {
		panic("handlers.NewConsole: archetypes must be non-empty")
	}
	return &Console{
		world:      world,
		commands:   commands,
		dir:        dir,
		archetypes: archetypes,
		location:   location,
		logger:     logger,
	}
}

// HandleSession logs the player in, then runs the command loop and the
// notification pump until the player quits or the connection drops.
//
// Postcondition: Returns nil on "quit". The player has left the world and
// their sheet has been saved whenever Join succeeded.
func (c *Console) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	_ = conn.WriteLine(telnet.Colorize(telnet.Bold, "Welcome to the arena."))

	username, err := c.ask(conn, "Name: ", func(s string) (string, bool) {
		return s, validName.MatchString(s)
	})
	if err != nil {
		return err
	}
	archetype, err := c.ask(conn, fmt.Sprintf("Archetype [%s]: ", strings.Join(c.archetypes, "/")), func(s string) (string, bool) {
		if s == "" {
			return c.archetypes[0], true
		}
		s = strings.ToLower(s)
		return s, slices.Contains(c.archetypes, s)
	})
	if err != nil {
		return err
	}

	sess, err := c.world.Join(ctx, gameserver.JoinRequest{
		Username:  username,
		Archetype: archetype,
		Team:      ConsoleTeam,
		Location:  c.location,
	})
	if err != nil {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Could not join: "+status.Convert(err).Message()))
		return fmt.Errorf("joining %q: %w", username, err)
	}
	defer c.world.Disconnect(sess)

	_ = conn.Printf("You enter %s as a %s. Type %s for commands.",
		c.location, sess.Entity.Sheet().Archetype.Name, telnet.Colorize(telnet.Cyan, "help"))

	prompt := telnet.Colorize(telnet.Cyan, fmt.Sprintf("[%s]> ", username))
	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pump(sessCtx, conn, sess, prompt)
	}()

	err = c.commandLoop(sessCtx, conn, sess.ID(), prompt)
	cancel()
	wg.Wait()
	return err
}

// ask prompts until valid accepts the answer, at most maxAttempts times.
func (c *Console) ask(conn *telnet.Conn, prompt string, valid func(string) (string, bool)) (string, error) {
	for range maxAttempts {
		if err := conn.WritePrompt(prompt); err != nil {
			return "", err
		}
		line, err := conn.ReadLine()
		if err != nil {
			return "", fmt.Errorf("reading answer: %w", err)
		}
		if answer, ok := valid(line); ok {
			return answer, nil
		}
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "That won't do."))
	}
	_ = conn.WriteLine("Goodbye.")
	return "", ErrTooManyAttempts
}

func (c *Console) commandLoop(ctx context.Context, conn *telnet.Conn, id, prompt string) error {
	for {
		if err := conn.WritePrompt(prompt); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if line == "" {
			continue
		}
		reply, err := c.commands.Handle(ctx, id, line)
		switch {
		case errors.Is(err, gameserver.ErrQuit):
			_ = conn.WriteLine(reply)
			return nil
		case err != nil:
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, err.Error()))
			return err
		}
		if err := conn.WriteLine(reply); err != nil {
			return err
		}
	}
}

// pump writes bridge events to conn until ctx ends or the bridge closes,
// redrawing the prompt after each one.
func (c *Console) pump(ctx context.Context, conn *telnet.Conn, sess *session.PlayerSession, prompt string) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sess.Bridge.Events():
			if !ok {
				return
			}
			evt, err := gameserver.DecodeEvent(data)
			if err != nil {
				c.logger.Error("decoding console event", zap.String("entity", sess.ID()), zap.Error(err))
				continue
			}
			text := RenderEvent(evt, sess.ID(), c.name)
			if text == "" {
				continue
			}
			if err := conn.WritePrompt("\r\n" + text + "\r\n" + prompt); err != nil {
				return
			}
		}
	}
}

func (c *Console) name(id string) string {
	if e, ok := c.dir.Get(id); ok && e.Name != "" {
		return e.Name
	}
	return id
}
