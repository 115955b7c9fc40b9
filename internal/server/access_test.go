package server

import (
	"testing"
	"time"
)

func TestHasPremiumAccess(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	justExpired := now.Add(-time.Second)
	vipList := map[string]struct{}{"vip@example.com": {}}

	cases := []struct {
		name string
		user userRecord
		sub  *subscriptionRecord
		want bool
	}{
		{
			name: "vip flag wins regardless of subscription",
			user: userRecord{Email: "a@example.com", IsVIP: true},
			sub:  &subscriptionRecord{Status: "canceled"},
			want: true,
		},
		{
			name: "vip allow-list email",
			user: userRecord{Email: "VIP@Example.com"},
			sub:  nil,
			want: true,
		},
		{
			name: "no subscription",
			user: userRecord{Email: "a@example.com"},
			sub:  nil,
			want: false,
		},
		{
			name: "inactive subscription",
			user: userRecord{Email: "a@example.com"},
			sub:  &subscriptionRecord{Status: "inactive", CurrentPeriodEnd: &future},
			want: false,
		},
		{
			name: "active with future period end",
			user: userRecord{Email: "a@example.com"},
			sub:  &subscriptionRecord{Status: "active", CurrentPeriodEnd: &future},
			want: true,
		},
		{
			name: "active but period already ended",
			user: userRecord{Email: "a@example.com"},
			sub:  &subscriptionRecord{Status: "active", CurrentPeriodEnd: &justExpired},
			want: false,
		},
		{
			name: "active with no period end",
			user: userRecord{Email: "a@example.com"},
			sub:  &subscriptionRecord{Status: "active"},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasPremiumAccess(tc.user, tc.sub, vipList, now); got != tc.want {
				t.Fatalf("hasPremiumAccess = %v, want %v", got, tc.want)
			}
		})
	}
}
