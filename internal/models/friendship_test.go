package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestClassifyRequest(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()

	tests := []struct {
		name   string
		sender uuid.UUID
		status FriendRequestStatus
		want   RelationStatus
	}{
		{"outgoing pending", viewer, FriendRequestPending, RelationPendingOutgoing},
		{"incoming pending", other, FriendRequestPending, RelationPendingIncoming},
		{"accepted either way", other, FriendRequestAccepted, RelationAccepted},
		{"declined", viewer, FriendRequestDeclined, RelationDeclined},
		{"unknown", viewer, FriendRequestStatus("weird"), RelationNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRequest(viewer, tt.sender, tt.status); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelationStatus_Stronger(t *testing.T) {
	if got := RelationDeclined.Stronger(RelationPendingIncoming); got != RelationPendingIncoming {
		t.Fatalf("expected pending_incoming to win over declined, got %q", got)
	}
	if got := RelationAccepted.Stronger(RelationPendingOutgoing); got != RelationAccepted {
		t.Fatalf("expected accepted to win, got %q", got)
	}
	if got := RelationNone.Stronger(RelationNone); got != RelationNone {
		t.Fatalf("expected none, got %q", got)
	}
}

func TestGenderValid(t *testing.T) {
	for _, g := range []Gender{GenderMale, GenderFemale, GenderOther} {
		if !g.Valid() {
			t.Fatalf("expected %q valid", g)
		}
	}
	if Gender("robot").Valid() {
		t.Fatal("expected unknown gender to be invalid")
	}
}
