package domain

import (
	"errors"
	"testing"
	"time"
	"unicode/utf8"
)

func TestLinkStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from LinkStatus
		to   LinkStatus
		want bool
	}{
		{LinkPending, LinkApproved, true},
		{LinkPending, LinkRejected, true},
		{LinkRejected, LinkPending, true},
		{LinkPending, LinkPending, false},
		{LinkApproved, LinkRejected, false},
		{LinkApproved, LinkPending, false},
		{LinkActive, LinkPending, false},
		{LinkRejected, LinkApproved, false},
		{LinkStatus("unknown"), LinkPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinkStatus_IsApproved(t *testing.T) {
	if !LinkApproved.IsApproved() || !LinkActive.IsApproved() {
		t.Error("approved and active should both read as approved")
	}
	if LinkPending.IsApproved() || LinkRejected.IsApproved() {
		t.Error("pending and rejected should not read as approved")
	}
}

func TestParseLinkAction(t *testing.T) {
	tests := []struct {
		raw     string
		want    LinkAction
		wantErr bool
	}{
		{"approve", ActionApprove, false},
		{" Reject ", ActionReject, false},
		{"delete", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLinkAction(tt.raw)
			if tt.wantErr {
				if !IsKind(err, KindValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseLinkAction() = %v, %v, want %v", got, err, tt.want)
			}
		})
	}
}

func TestTenantOrganizerLink_Lifecycle(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	link := NewLinkRequest(1, 2, start)
	link.ID = 10

	reason := "Dokumen tidak lengkap"
	rejectedAt := start.Add(time.Hour)
	tr, err := link.Reject("org-profile", &reason, rejectedAt)
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if tr.FromStatus != LinkPending || tr.ToStatus != LinkRejected || tr.LinkID != 10 {
		t.Errorf("unexpected transition %+v", tr)
	}
	if link.RejectedAt == nil || *link.RejectionReason != reason || link.ApprovedAt != nil {
		t.Errorf("reject fields not set: %+v", link)
	}

	again := start.Add(48 * time.Hour)
	if _, err := link.Resurrect("tenant-profile", again); err != nil {
		t.Fatalf("Resurrect() error = %v", err)
	}
	if link.Status != LinkPending || link.RejectedAt != nil || link.RejectionReason != nil {
		t.Errorf("rejection fields not cleared: %+v", link)
	}
	if !link.RequestedAt.Equal(again) {
		t.Errorf("requested_at = %v, want %v", link.RequestedAt, again)
	}

	approvedAt := again.Add(time.Hour)
	if _, err := link.Approve("org-profile", approvedAt); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if link.Status != LinkApproved || link.ApprovedAt == nil || !link.ApprovedAt.Equal(approvedAt) {
		t.Errorf("approve fields not set: %+v", link)
	}

	if _, err := link.Reject("org-profile", nil, approvedAt); !errors.Is(err, ErrInvalidLinkTransition) {
		t.Errorf("expected ErrInvalidLinkTransition, got %v", err)
	}
	if _, err := link.Resurrect("tenant-profile", approvedAt); !errors.Is(err, ErrInvalidLinkTransition) {
		t.Errorf("expected ErrInvalidLinkTransition, got %v", err)
	}
	if link.Status != LinkApproved {
		t.Errorf("status changed by a rejected transition: %s", link.Status)
	}
}

func TestTenantOrganizerLink_Urgency(t *testing.T) {
	requested := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	link := NewLinkRequest(1, 2, requested)

	tests := []struct {
		name       string
		now        time.Time
		wantDays   int
		wantUrgent bool
	}{
		{"same day", requested.Add(5 * time.Hour), 0, false},
		{"two days", requested.Add(50 * time.Hour), 2, false},
		{"three days", requested.Add(72 * time.Hour), 3, true},
		{"clock skew", requested.Add(-time.Hour), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := link.DaysPending(tt.now); got != tt.wantDays {
				t.Errorf("DaysPending() = %d, want %d", got, tt.wantDays)
			}
			if got := link.IsUrgent(tt.now); got != tt.wantUrgent {
				t.Errorf("IsUrgent() = %v, want %v", got, tt.wantUrgent)
			}
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane@example.com", "ja***@example.***"},
		{"a@b.co", "a***@b.***"},
		{"ahmad.ali@mail.example.my", "ah***@mail.***"},
		{"nodomain", "***"},
		{"日a@x.com", "日a***@x.***"},
		{"日本語@x.com", "日本***@x.***"},
		{"éric@contoh.my", "ér***@contoh.***"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got := MaskEmail(tt.email)
			if got != tt.want {
				t.Errorf("MaskEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("MaskEmail(%q) = %q is not valid UTF-8", tt.email, got)
			}
		})
	}
}

func TestNormalizeOrganizerCode(t *testing.T) {
	tests := []struct {
		code    string
		want    string
		wantErr bool
	}{
		{"org001", "ORG001", false},
		{"  Org-002 ", "ORG-002", false},
		{"ab", "", true},
		{"ORG 001", "", true},
		{"ORG001'; DROP", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := NormalizeOrganizerCode(tt.code)
			if tt.wantErr {
				if !IsKind(err, KindValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("NormalizeOrganizerCode() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}
