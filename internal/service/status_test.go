package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vellko/affiliate-admin/internal/repository"
)

func ptr(s repository.PlatformStatus) *repository.PlatformStatus { return &s }

func TestDeriveStatus(t *testing.T) {
	approved := ptr(repository.PlatformApproved)
	rejected := ptr(repository.PlatformRejected)
	failed := ptr(repository.PlatformFailed)

	tests := []struct {
		name   string
		t      repository.ApplicationType
		cake   *repository.PlatformStatus
		ringba *repository.PlatformStatus
		want   repository.SignupStatus
	}{
		{"web approved", repository.TypeWebTraffic, approved, nil, repository.StatusApproved},
		{"web rejected", repository.TypeWebTraffic, rejected, nil, repository.StatusRejected},
		{"web untouched", repository.TypeWebTraffic, nil, nil, repository.StatusPending},
		{"web failed stays pending", repository.TypeWebTraffic, failed, nil, repository.StatusPending},
		{"web ignores ringba", repository.TypeWebTraffic, nil, approved, repository.StatusPending},

		{"call approved", repository.TypeCallTraffic, nil, approved, repository.StatusApproved},
		{"call rejected", repository.TypeCallTraffic, nil, rejected, repository.StatusRejected},
		{"call failed stays pending", repository.TypeCallTraffic, nil, failed, repository.StatusPending},

		{"both approved", repository.TypeBoth, approved, approved, repository.StatusApproved},
		{"both rejected", repository.TypeBoth, rejected, rejected, repository.StatusRejected},
		{"both cake approved unblocks", repository.TypeBoth, approved, nil, repository.StatusApproved},
		{"both ringba approved unblocks", repository.TypeBoth, nil, approved, repository.StatusApproved},
		{"both approved plus failed", repository.TypeBoth, approved, failed, repository.StatusApproved},
		{"both approved plus rejected", repository.TypeBoth, approved, rejected, repository.StatusApproved},
		{"both failed failed", repository.TypeBoth, failed, failed, repository.StatusPending},
		{"both rejected plus failed", repository.TypeBoth, rejected, failed, repository.StatusPending},
		{"both rejected plus untouched", repository.TypeBoth, rejected, nil, repository.StatusPending},
		{"both untouched", repository.TypeBoth, nil, nil, repository.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.t, tt.cake, tt.ringba))
		})
	}
}
