package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/notify"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:    "  Ada@Example.com ",
		Password: "correct-horse",
		Name:     " Ada Lovelace ",
		Skills:   []string{"Go", "go", " Rust "},
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, models.EventRequirements{})

	result, err := env.auth.Register(ctx, env.event, validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if result.Token == "" {
		t.Fatal("Register() returned an empty token")
	}
	a := result.Attendee
	if a.Email != "ada@example.com" || a.Name != "Ada Lovelace" {
		t.Fatalf("attendee = %q <%s>, want normalized name and email", a.Name, a.Email)
	}
	if a.PasswordHash != nil {
		t.Fatal("Register() must not return the password hash")
	}
	if len(a.Skills) != 2 {
		t.Fatalf("Skills = %v, want deduplicated", a.Skills)
	}
	if !a.LookingForTeam || a.Status != models.AttendeeStatusConfirmed {
		t.Fatalf("attendee = %+v, want confirmed and looking for a team", a)
	}

	session, err := env.auth.Authenticate(result.Token, env.event)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if session.AttendeeID != a.ID || session.EventID != env.event.ID {
		t.Fatalf("session = %+v, want attendee %d in event %d", session, a.ID, env.event.ID)
	}

	ev := env.publisher.last()
	if ev.Type != notify.AttendeeRegistered || ev.Email != "ada@example.com" {
		t.Fatalf("last event = %+v, want attendee.registered with email", ev)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"missing name", func(in *RegisterInput) { in.Name = " " }, ErrNameRequired},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, ErrEmailRequired},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrInvalidEmail},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, ErrPasswordRequired},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, models.EventRequirements{})
			input := validRegistration()
			tt.mutate(&input)
			_, err := env.auth.Register(context.Background(), env.event, input)
			expectErr(t, err, tt.want)
		})
	}
}

func TestRegisterDuplicateEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, models.EventRequirements{})

	if _, err := env.auth.Register(ctx, env.event, validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	again := validRegistration()
	again.Email = "ADA@example.COM"
	_, err := env.auth.Register(ctx, env.event, again)
	expectErr(t, err, ErrEmailTaken)

	// The same address may register for a different event.
	other := env.db.addEvent(models.Event{Slug: "autumn", IsPublic: true, IsPublished: true})
	if _, err := env.auth.Register(ctx, other, validRegistration()); err != nil {
		t.Fatalf("Register() for another event error = %v", err)
	}
}

func TestRegisterRequiresVisibleEvent(t *testing.T) {
	env := newTestEnv(t, models.EventRequirements{})
	hidden := env.db.addEvent(models.Event{Slug: "draft", IsPublic: true, IsPublished: false})

	_, err := env.auth.Register(context.Background(), hidden, validRegistration())
	expectErr(t, err, ErrEventNotOpen)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, models.EventRequirements{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.auth.now = func() time.Time { return now }

	if _, err := env.auth.Register(ctx, env.event, validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		input   LoginInput
		wantErr error
	}{
		{"ok", LoginInput{Email: "ADA@example.com", Password: "correct-horse"}, nil},
		{"wrong password", LoginInput{Email: "ada@example.com", Password: "wrong-horse"}, ErrInvalidCredentials},
		{"unknown email", LoginInput{Email: "bob@example.com", Password: "correct-horse"}, ErrInvalidCredentials},
		{"empty", LoginInput{}, ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.auth.Login(ctx, env.event, tt.input)
			if tt.wantErr != nil {
				expectErr(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if result.Token == "" || result.Attendee.PasswordHash != nil {
				t.Fatalf("result = %+v, want a token and no hash", result)
			}
			stored := env.db.attendee(result.Attendee.ID)
			if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(now) {
				t.Fatalf("LastLoginAt = %v, want %v", stored.LastLoginAt, now)
			}
		})
	}
}

func TestLoginIsScopedToEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, models.EventRequirements{})
	if _, err := env.auth.Register(ctx, env.event, validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	other := env.db.addEvent(models.Event{Slug: "autumn", IsPublic: true, IsPublished: true})
	_, err := env.auth.Login(ctx, other, LoginInput{Email: "ada@example.com", Password: "correct-horse"})
	expectErr(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsOtherEventTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, models.EventRequirements{})
	result, err := env.auth.Register(ctx, env.event, validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	other := env.db.addEvent(models.Event{Slug: "autumn", IsPublic: true, IsPublished: true})
	_, err = env.auth.Authenticate(result.Token, other)
	expectErr(t, err, ErrTokenEventMismatch)

	_, err = env.auth.Authenticate("", env.event)
	expectErr(t, err, ErrAuthRequired)

	_, err = env.auth.Authenticate("garbage", env.event)
	expectErr(t, err, ErrInvalidToken)
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, models.EventRequirements{})
	result, err := env.auth.Register(ctx, env.event, validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	session := &models.Session{AttendeeID: result.Attendee.ID, EventID: env.event.ID}

	view, err := env.auth.GetSession(ctx, env.event, session)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if view.Team != nil || view.Membership != nil {
		t.Fatalf("view = %+v, want no team yet", view)
	}
	if view.Attendee.PasswordHash != nil {
		t.Fatal("GetSession() leaked the password hash")
	}

	team := env.createTeam(t, session, "Rocket", models.JoinTypeOpen, 0)
	view, err = env.auth.GetSession(ctx, env.event, session)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if view.Team == nil || view.Team.ID != team.ID || view.Membership.Role != models.RoleLeader {
		t.Fatalf("view = %+v, want leader of team %d", view, team.ID)
	}

	_, err = env.auth.GetSession(ctx, env.event, &models.Session{AttendeeID: 9999, EventID: env.event.ID})
	expectErr(t, err, ErrInvalidToken)
}
