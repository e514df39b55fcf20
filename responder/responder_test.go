package responder

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMockReplyInterpolatesPrompt(t *testing.T) {
	m := NewMock(0, "en", 1)

	for _, locale := range []string{LocaleEN, LocaleZhCN, LocaleZhTW} {
		reply, err := m.Reply(context.Background(), locale, "  天气怎么样  ")
		if err != nil {
			t.Fatalf("Reply(%s) failed: %v", locale, err)
		}
		if !strings.Contains(reply, "天气怎么样") {
			t.Errorf("reply for %s should contain prompt, got %q", locale, reply)
		}
		if strings.Contains(reply, "  天气") {
			t.Errorf("prompt should be trimmed, got %q", reply)
		}
	}
}

func TestMockReplyUsesLocaleTemplates(t *testing.T) {
	m := NewMock(0, "en", 42)

	for i := 0; i < 20; i++ {
		reply, _ := m.Reply(context.Background(), LocaleZhCN, "hi")
		if !containsAny(reply, "您", "我") {
			t.Fatalf("zh-CN reply should come from the Chinese set, got %q", reply)
		}
	}
}

func TestMockReplyUnknownLocaleFallsBack(t *testing.T) {
	m := NewMock(0, "zh-TW", 7)

	reply, err := m.Reply(context.Background(), "fr", "bonjour")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, tmpl := range templates[LocaleZhTW] {
		if reply == strings.Replace(tmpl, "%s", "bonjour", 1) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a zh-TW template, got %q", reply)
	}
}

func TestMockReplyHonoursContext(t *testing.T) {
	m := NewMock(time.Second, "en", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if _, err := m.Reply(ctx, LocaleEN, "hello"); err == nil {
		t.Error("expected context error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancelled reply should return immediately")
	}
}

func TestMatchLocale(t *testing.T) {
	tests := map[string]string{
		"":                        LocaleEN,
		"en":                      LocaleEN,
		"en-US,en;q=0.9":          LocaleEN,
		"zh-CN":                   LocaleZhCN,
		"zh":                      LocaleZhCN,
		"zh-TW":                   LocaleZhTW,
		"zh-TW,zh;q=0.9,en;q=0.8": LocaleZhTW,
		"fr-FR":                   LocaleEN,
		"de;q=0.9,zh-CN;q=0.8":    LocaleZhCN,
		"!!not a locale!!":        LocaleEN,
	}
	for in, want := range tests {
		if got := MatchLocale(in); got != want {
			t.Errorf("MatchLocale(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultTitle(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	if got := DefaultTitle(LocaleEN, now); got != "New Chat 03-09 14:05" {
		t.Errorf("unexpected en title %q", got)
	}
	if got := DefaultTitle(LocaleZhCN, now); got != "新对话 03-09 14:05" {
		t.Errorf("unexpected zh-CN title %q", got)
	}
	if got := DefaultTitle("xx", now); got != "New Chat 03-09 14:05" {
		t.Errorf("unknown locale should fall back to en, got %q", got)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
