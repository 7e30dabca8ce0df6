package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/seminar/internal/locale"
	"github.com/hitoshi/seminar/internal/model"
)

func newTestLocalizer(t *testing.T, lang string) *locale.Localizer {
	t.Helper()
	b, err := locale.NewBundle("sk")
	if err != nil {
		t.Fatalf("NewBundle failed: %v", err)
	}
	return b.Localizer(lang)
}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer("https://seminar.example.com")
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}
	return c
}

func TestComposer_Verification_BuildsBothBodies(t *testing.T) {
	c := newTestComposer(t)
	user := &model.User{ID: "u-1", Email: "jana@example.sk", FirstName: "Jana"}

	msg, err := c.Verification(newTestLocalizer(t, "sk"), user, "dS0x", "tok.en.sig")
	if err != nil {
		t.Fatalf("Verification failed: %v", err)
	}

	if msg.To != "jana@example.sk" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Subject != "Overovací email" {
		t.Errorf("Subject = %q, want %q", msg.Subject, "Overovací email")
	}

	wantLink := "https://seminar.example.com/verify/dS0x/tok.en.sig"
	if !strings.Contains(msg.TextBody, wantLink) {
		t.Errorf("text body missing link %q:\n%s", wantLink, msg.TextBody)
	}
	if !strings.Contains(msg.HTMLBody, `href="`+wantLink+`"`) {
		t.Errorf("html body missing link %q:\n%s", wantLink, msg.HTMLBody)
	}
	if !strings.Contains(msg.TextBody, "Ahoj Jana,") {
		t.Errorf("text body missing greeting:\n%s", msg.TextBody)
	}
}

func TestComposer_Verification_EscapesNameInHTML(t *testing.T) {
	c := newTestComposer(t)
	user := &model.User{Email: "x@example.sk", FirstName: "<b>Eva</b>"}

	msg, err := c.Verification(newTestLocalizer(t, "en"), user, "uid", "tok")
	if err != nil {
		t.Fatalf("Verification failed: %v", err)
	}
	if strings.Contains(msg.HTMLBody, "<b>Eva</b>") {
		t.Errorf("html body should escape user-supplied name:\n%s", msg.HTMLBody)
	}
}

func TestComposer_Verification_FallsBackToEmailForName(t *testing.T) {
	c := newTestComposer(t)
	user := &model.User{Email: "anon@example.sk"}

	msg, err := c.Verification(newTestLocalizer(t, "en"), user, "uid", "tok")
	if err != nil {
		t.Fatalf("Verification failed: %v", err)
	}
	if !strings.Contains(msg.TextBody, "Hello anon@example.sk,") {
		t.Errorf("text body should greet by email:\n%s", msg.TextBody)
	}
}

func TestComposer_PasswordReset_UsesResetLinkAndSubject(t *testing.T) {
	c := newTestComposer(t)
	user := &model.User{Email: "peter@example.sk", FirstName: "Peter"}

	msg, err := c.PasswordReset(newTestLocalizer(t, "en"), user, "uid", "tok")
	if err != nil {
		t.Fatalf("PasswordReset failed: %v", err)
	}
	if msg.Subject != "Password reset" {
		t.Errorf("Subject = %q, want %q", msg.Subject, "Password reset")
	}
	if !strings.Contains(msg.TextBody, "https://seminar.example.com/password-reset/uid/tok") {
		t.Errorf("text body missing reset link:\n%s", msg.TextBody)
	}
}

func TestLogMailer_Send_LogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := NewLogMailer(logger, "noreply@seminar.example.com")

	err := m.Send(context.Background(), &Message{
		To:       "jana@example.sk",
		Subject:  "Overovací email",
		TextBody: "link",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"to":"jana@example.sk"`, `"subject":"Overovací email"`, `"msg":"mail"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestLogMailer_Send_InvalidRecipient_ReturnsError(t *testing.T) {
	m := NewLogMailer(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), "noreply@seminar.example.com")

	if err := m.Send(context.Background(), &Message{To: "not an address"}); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestSMTPMailer_Send_UnreachableServer_ReturnsError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{
		Host: "127.0.0.1",
		Port: 1,
		From: "noreply@seminar.example.com",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := m.Send(ctx, &Message{To: "jana@example.sk", Subject: "s", TextBody: "b"})
	if err == nil {
		t.Fatal("expected error when SMTP server is unreachable")
	}
}

func TestSMTPMailer_Send_InvalidFrom_ReturnsError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "broken"})

	if err := m.Send(context.Background(), &Message{To: "jana@example.sk"}); err == nil {
		t.Error("expected error for invalid from address")
	}
}
