package collab

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	digest := MD5Hex("hunter2")
	hash, err := HashPassword(digest)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(digest, hash) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(MD5Hex("wrong"), hash) {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestBotRespondsToHelp(t *testing.T) {
	b := NewBot("BanchoBot")
	resp := b.Respond("alice", "#osu", "!help")
	if resp == "" {
		t.Fatal("expected non-empty help response")
	}
}

func TestBotIgnoresNonCommand(t *testing.T) {
	b := NewBot("BanchoBot")
	if resp := b.Respond("alice", "#osu", "hello there"); resp != "" {
		t.Fatalf("expected no response, got %q", resp)
	}
}

func TestBotIgnoresOwnMessages(t *testing.T) {
	b := NewBot("BanchoBot")
	if resp := b.Respond("BanchoBot", "#osu", "!help"); resp != "" {
		t.Fatalf("expected bot to ignore its own messages, got %q", resp)
	}
}

func TestBotEchoRequiresArgument(t *testing.T) {
	b := NewBot("BanchoBot")
	resp := b.Respond("alice", "#osu", "!echo")
	if resp == "" {
		t.Fatal("expected syntax error response")
	}
}
