package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/pettime/companion/internal/app"
	"github.com/pettime/companion/internal/domain"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/health"
)

type commands struct {
	app *app.App
	out io.Writer
}

func (c *commands) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		c.app.Session.Logout(ctx)
		return c.print(c.app.Session.Snapshot())
	case "whoami":
		return c.print(c.app.Session.Snapshot())
	case "refresh":
		if err := c.app.Session.Refresh(ctx); err != nil {
			return err
		}
		return c.print(c.app.Session.Snapshot())
	case "pets":
		if err := c.app.Pets.FetchPets(ctx); err != nil {
			return err
		}
		return c.print(petRows(c.app.Pets.Snapshot().Pets))
	case "pet":
		return c.pet(ctx, args)
	case "pet-types":
		if err := c.app.Pets.FetchPetTypes(ctx); err != nil {
			return err
		}
		return c.print(c.app.Pets.Snapshot().PetTypes)
	case "game-types":
		if err := c.app.Activities.FetchGameTypes(ctx); err != nil {
			return err
		}
		return c.print(c.app.Activities.Snapshot().GameTypes)
	case "activities":
		fs := flag.NewFlagSet("activities", flag.ContinueOnError)
		petID := fs.String("pet", "", "only activities of this pet")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if err := c.app.Activities.FetchActivities(ctx, *petID); err != nil {
			return err
		}
		return c.print(c.app.Activities.Snapshot().Activities)
	case "activity":
		return c.activity(ctx, args)
	case "doctor":
		return c.doctor(ctx)
	default:
		return errUsage
	}
}

func (c *commands) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := c.app.Session.Login(ctx, domain.LoginRequest{Email: *email, Password: *password}); err != nil {
		return err
	}
	return c.print(c.app.Session.Snapshot())
}

func (c *commands) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	req := domain.RegisterRequest{Email: *email, Password: *password, Name: *name}
	if err := c.app.Session.Register(ctx, req); err != nil {
		return err
	}
	return c.print(c.app.Session.Snapshot())
}

func (c *commands) pet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "show":
		if len(args) != 1 {
			return errUsage
		}
		pet, err := c.app.Pets.FetchPet(ctx, args[0])
		if err != nil {
			return err
		}
		c.app.Pets.Select(pet)
		view := petDetail{Pet: newPetRow(*pet), Stats: domain.LocalStats(*pet)}
		// Server stats are richer; fall back to the local derivation.
		if stats, err := c.app.Pets.FetchStats(ctx, pet.ID); err == nil && stats != nil {
			view.Stats = *stats
		}
		return c.print(view)

	case "create":
		fs := flag.NewFlagSet("pet create", flag.ContinueOnError)
		petType := fs.String("type", "", "pet type id")
		name := fs.String("name", "", "pet name")
		breed := fs.String("breed", "", "breed")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		req := domain.CreatePetRequest{PetTypeID: *petType, Name: *name, Breed: optional(*breed)}
		pet, err := c.app.Pets.Create(ctx, req)
		if err != nil {
			return err
		}
		return c.print(newPetRow(*pet))

	case "update":
		fs := flag.NewFlagSet("pet update", flag.ContinueOnError)
		name := fs.String("name", "", "new name")
		breed := fs.String("breed", "", "new breed")
		avatar := fs.String("avatar", "", "new avatar url")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		req := domain.UpdatePetRequest{Name: optional(*name), Breed: optional(*breed), AvatarURL: optional(*avatar)}
		pet, err := c.app.Pets.Update(ctx, fs.Arg(0), req)
		if err != nil {
			return err
		}
		return c.print(newPetRow(*pet))

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		if err := c.app.Pets.Delete(ctx, args[0]); err != nil {
			return err
		}
		return c.print(petRows(c.app.Pets.Snapshot().Pets))

	default:
		return errUsage
	}
}

func (c *commands) activity(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "start":
		fs := flag.NewFlagSet("activity start", flag.ContinueOnError)
		petID := fs.String("pet", "", "pet id")
		gameType := fs.String("game", "", "game type id")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		a, err := c.app.Activities.Start(ctx, domain.CreateActivityRequest{PetID: *petID, GameTypeID: *gameType})
		if err != nil {
			return err
		}
		return c.print(a)

	case "finish":
		fs := flag.NewFlagSet("activity finish", flag.ContinueOnError)
		data := fs.String("data", "", "game data as a JSON object")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		var gameData json.RawMessage
		if *data != "" {
			if !json.Valid([]byte(*data)) {
				return apperrors.InvalidInput("game data must be valid JSON")
			}
			gameData = json.RawMessage(*data)
		}
		a, err := c.app.Activities.Finish(ctx, fs.Arg(0), time.Time{}, gameData)
		if err != nil {
			return err
		}
		return c.print(a)

	default:
		return errUsage
	}
}

func (c *commands) doctor(ctx context.Context) error {
	report := c.app.Health.Check(ctx, c.app.Config.APITimeout)
	metrics, err := c.app.MetricsSnapshot()
	if err != nil {
		return err
	}
	if err := c.print(struct {
		health.Report
		Breaker string             `json:"breaker"`
		Metrics map[string]float64 `json:"metrics"`
	}{report, c.app.BreakerState(), metrics}); err != nil {
		return err
	}
	if report.Status != health.StatusUp {
		return fmt.Errorf("health check: %s", report.Status)
	}
	return nil
}

func (c *commands) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// petRow is a pet as shown on the terminal, mood normalized for display.
type petRow struct {
	domain.Pet
	Mood  domain.Mood `json:"mood"`
	Emoji string      `json:"mood_emoji"`
}

type petDetail struct {
	Pet   petRow          `json:"pet"`
	Stats domain.PetStats `json:"stats"`
}

func newPetRow(p domain.Pet) petRow {
	mood := p.Mood.Display()
	return petRow{Pet: p, Mood: mood, Emoji: mood.Emoji()}
}

func petRows(pets []domain.Pet) []petRow {
	rows := make([]petRow, 0, len(pets))
	for _, p := range pets {
		rows = append(rows, newPetRow(p))
	}
	return rows
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
