package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainGate_IsEligibleSender(t *testing.T) {
	gate := NewDomainGate([]string{"hdfcbank.net", "icicibank.com"})

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"exact domain", "alerts@hdfcbank.net", true},
		{"alerts subdomain prefix stripped", "noreply@alerts.hdfcbank.net", true},
		{"mail prefix stripped", "info@mail.icicibank.com", true},
		{"deep subdomain", "txn@secure.icicibank.com", true},
		{"uppercase domain", "ALERTS@HDFCBANK.NET", true},
		{"unknown domain", "deals@amazon.in", false},
		{"lookalike suffix", "alerts@notsbi-icicibank.net", false},
		{"no at sign", "hdfcbank.net", false},
		{"empty address", "", false},
		{"trailing at", "alerts@", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.IsEligibleSender(tt.address))
		})
	}
}

func TestDomainGate_EmptyAllowListFailsClosed(t *testing.T) {
	gate := NewDomainGate(nil)
	assert.False(t, gate.IsEligibleSender("alerts@hdfcbank.net"))
}
