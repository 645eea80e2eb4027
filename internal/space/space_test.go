package space

import (
	"errors"
	"testing"
	"time"
)

func TestSpaceJoinAndLeave(t *testing.T) {
	t.Parallel()
	sp := New("test-space", Options{})

	member, err := sp.Join("discord", "server-1", "chan-1", "", "", false)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if member.ServerID != "server-1" {
		t.Errorf("member.ServerID = %q, want server-1", member.ServerID)
	}

	if err := sp.Leave("server-1"); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if _, ok := sp.GetMember("server-1"); ok {
		t.Error("GetMember() found a member after Leave()")
	}
}

func TestSpaceJoinAlreadyJoinedFails(t *testing.T) {
	t.Parallel()
	sp := New("test-space", Options{})

	if _, err := sp.Join("discord", "server-1", "chan-1", "", "", false); err != nil {
		t.Fatalf("first Join() error = %v", err)
	}
	_, err := sp.Join("discord", "server-1", "chan-2", "", "", false)
	if !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("second Join() error = %v, want ErrAlreadyJoined", err)
	}
}

func TestSpaceLeaveNotJoinedFails(t *testing.T) {
	t.Parallel()
	sp := New("test-space", Options{})

	err := sp.Leave("server-1")
	if !errors.Is(err, ErrNotJoined) {
		t.Errorf("Leave() error = %v, want ErrNotJoined", err)
	}
}

func TestSpaceJoinBannedFails(t *testing.T) {
	t.Parallel()
	sp := New("test-space", Options{})
	sp.Ban("server-1")

	_, err := sp.Join("discord", "server-1", "chan-1", "", "", false)
	if !errors.Is(err, ErrBanned) {
		t.Errorf("Join() error = %v, want ErrBanned", err)
	}
}

func TestSpaceJoinPrivateRequiresInvite(t *testing.T) {
	t.Parallel()
	sp := New("private-space", Options{Private: true})

	_, err := sp.Join("discord", "server-1", "chan-1", "", "", false)
	if !errors.Is(err, ErrNoInvite) {
		t.Errorf("Join() with no code error = %v, want ErrNoInvite", err)
	}

	_, err = sp.Join("discord", "server-1", "chan-1", "", "bad-code", false)
	if !errors.Is(err, ErrInvalidInvite) {
		t.Errorf("Join() with bad code error = %v, want ErrInvalidInvite", err)
	}

	sp.AddInvite(Invite{Code: "good-code", MaxUses: 1})
	member, err := sp.Join("discord", "server-1", "chan-1", "", "good-code", false)
	if err != nil {
		t.Fatalf("Join() with valid code error = %v", err)
	}
	if member.InviteCode != "good-code" {
		t.Errorf("member.InviteCode = %q, want good-code", member.InviteCode)
	}

	invites := sp.Invites()
	if len(invites) != 1 || invites[0].Uses != 1 {
		t.Errorf("invite uses = %+v, want Uses=1", invites)
	}
}

func TestSpaceJoinPrivateInviteExhaustedFails(t *testing.T) {
	t.Parallel()
	sp := New("private-space", Options{Private: true})
	sp.AddInvite(Invite{Code: "one-use", MaxUses: 1})

	if _, err := sp.Join("discord", "server-1", "chan-1", "", "one-use", false); err != nil {
		t.Fatalf("first Join() error = %v", err)
	}
	_, err := sp.Join("discord", "server-2", "chan-2", "", "one-use", false)
	if !errors.Is(err, ErrInvalidInvite) {
		t.Errorf("second Join() error = %v, want ErrInvalidInvite", err)
	}
}

func TestSpaceJoinPrivateExpiredInviteFails(t *testing.T) {
	t.Parallel()
	sp := New("private-space", Options{Private: true})
	sp.AddInvite(Invite{Code: "expired", ExpiryUnix: time.Now().Add(-time.Hour).Unix()})

	_, err := sp.Join("discord", "server-1", "chan-1", "", "expired", false)
	if !errors.Is(err, ErrInvalidInvite) {
		t.Errorf("Join() error = %v, want ErrInvalidInvite", err)
	}
	if len(sp.Invites()) != 0 {
		t.Error("expired invite was not removed")
	}
}

func TestSpaceJoinPrivateForceBypassesInvite(t *testing.T) {
	t.Parallel()
	sp := New("private-space", Options{Private: true})

	_, err := sp.Join("discord", "server-1", "chan-1", "", "", true)
	if err != nil {
		t.Fatalf("forced Join() error = %v", err)
	}
}

func TestSpacePartialJoin(t *testing.T) {
	t.Parallel()
	sp := New("test-space", Options{})

	member := sp.PartialJoin("fluxer", "server-1", "chan-1", "", "")
	if !member.Partial {
		t.Error("PartialJoin() member.Partial = false, want true")
	}
	got, ok := sp.GetMember("server-1")
	if !ok || !got.Partial {
		t.Errorf("GetMember() = %+v, ok = %v, want Partial member", got, ok)
	}
}

func TestInviteExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tests := []struct {
		name string
		inv  Invite
		want bool
	}{
		{"never expires, unused", Invite{}, false},
		{"expiry in the past", Invite{ExpiryUnix: now.Add(-time.Minute).Unix()}, true},
		{"expiry in the future", Invite{ExpiryUnix: now.Add(time.Minute).Unix()}, false},
		{"max uses reached", Invite{MaxUses: 2, Uses: 2}, true},
		{"max uses not reached", Invite{MaxUses: 2, Uses: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.inv.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryAddGetDelete(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	sp := New("test-space", Options{})
	reg.Add(sp)

	got, ok := reg.Get(sp.ID)
	if !ok || got.ID != sp.ID {
		t.Errorf("Get() = %+v, ok = %v, want %s", got, ok, sp.ID)
	}

	reg.Delete(sp.ID)
	if _, ok := reg.Get(sp.ID); ok {
		t.Error("Get() found space after Delete()")
	}
}

func TestRegistryGetSpaceForChannel(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	sp := New("test-space", Options{})
	if _, err := sp.Join("discord", "server-1", "chan-1", "", "", false); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	reg.Add(sp)

	got, ok := reg.GetSpaceForChannel("server-1", "chan-1")
	if !ok || got.ID != sp.ID {
		t.Errorf("GetSpaceForChannel() = %+v, ok = %v, want %s", got, ok, sp.ID)
	}

	if _, ok := reg.GetSpaceForChannel("server-1", "chan-2"); ok {
		t.Error("GetSpaceForChannel() matched an unrelated channel")
	}
}

func TestRegistryToDictAndFromDocument(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	sp := New("test-space", Options{Private: true})
	sp.Ban("banned-server")
	if _, err := sp.Join("discord", "server-1", "chan-1", "webhook-1", "", true); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	reg.Add(sp)

	dict := reg.ToDict()
	doc, ok := dict[sp.ID].(document)
	if !ok {
		t.Fatalf("ToDict()[%s] has type %T, want document", sp.ID, dict[sp.ID])
	}

	restored := FromDocument(doc.ID, doc.Name, doc.Emoji, doc.Options, doc.Members, doc.Invites, doc.Bans)
	if restored.ID != sp.ID || restored.Name != sp.Name {
		t.Errorf("FromDocument() = %+v, want id=%s name=%s", restored, sp.ID, sp.Name)
	}
	if !restored.IsBanned("banned-server") {
		t.Error("restored space lost its ban list")
	}
	if _, ok := restored.GetMember("server-1"); !ok {
		t.Error("restored space lost its members")
	}
}
