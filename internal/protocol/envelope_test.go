package protocol

import (
	"testing"

	"github.com/hearthchat/hearth/internal/domain"
)

func TestDecodeDispatchesByType(t *testing.T) {
	data := []byte(`{"type":"voice_offer","room_id":"r1","from_peer":"p1","from_user":"u1","to_peer":"p2","sdp":"v=0"}`)
	v, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	offer, ok := v.(*VoiceOffer)
	if !ok {
		t.Fatalf("decoded %T, want *VoiceOffer", v)
	}
	if offer.FromPeer != "p1" || offer.ToPeer != "p2" || offer.SDP != "v=0" {
		t.Fatalf("unexpected offer fields: %+v", offer)
	}
}

func TestDecodeRoster(t *testing.T) {
	data := []byte(`{"type":"voice_registered","room_id":"r1","peers":[{"peer_id":"p1","user_id":"u1"},{"peer_id":"p2","user_id":"u2"}]}`)
	v, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	roster := v.(*VoiceRegistered)
	if len(roster.Peers) != 2 || roster.Peers[1].UserID != "u2" {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"bogus"}`)); err == nil {
		t.Fatal("unknown type must error so the link can drop it")
	}
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatal("truncated JSON must error")
	}
}

func TestEncodeCandidateOmitsEmptyMid(t *testing.T) {
	b, err := Encode(VoiceCandidate{
		Type:      TypeVoiceCandidate,
		RoomID:    domain.RoomID("r1"),
		FromPeer:  "p1",
		ToPeer:    "p2",
		Candidate: "candidate:1",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode round: %v", err)
	}
	if c := v.(*VoiceCandidate); c.SDPMid != "" || c.Candidate != "candidate:1" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
}
