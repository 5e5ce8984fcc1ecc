package domain

import "testing"

func TestParseAudience(t *testing.T) {
	tests := []struct {
		in      string
		want    Audience
		subject string
		wantErr bool
	}{
		{in: "", want: Audience{Kind: AudienceAll}, subject: "all"},
		{in: "all", want: Audience{Kind: AudienceAll}, subject: "all"},
		{in: "user:u-1", want: Audience{Kind: AudienceUser, ID: "u-1"}, subject: "user.u-1"},
		{in: "order:CMD001", want: Audience{Kind: AudienceOrder, ID: "CMD001"}, subject: "order.CMD001"},
		{in: "user:", wantErr: true},
		{in: "team:x", wantErr: true},
		{in: "everyone", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAudience(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAudience(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAudience(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAudience(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.Subject() != tt.subject {
			t.Errorf("Subject() = %q, want %q", got.Subject(), tt.subject)
		}
	}
}
