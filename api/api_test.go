package api

import (
	"net/http/httptest"
	"testing"

	"github.com/chainwatch/ingestor/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartitionParams(t *testing.T) {
	testCases := []struct {
		name    string
		query   string
		want    PartitionParams
		all     bool
		wantErr bool
	}{
		{
			name:  "no params selects all partitions",
			query: "",
			all:   true,
		},
		{
			name:  "full partition",
			query: "network=mainnet&subnet=c-chain&vm_type=evm&limit=20",
			want: PartitionParams{
				PartitionConfig: common.PartitionConfig{Network: "mainnet", Subnet: "c-chain", VMType: "evm"},
				Limit:           20,
			},
		},
		{
			name:    "partial partition",
			query:   "network=mainnet",
			wantErr: true,
		},
		{
			name:    "bad limit",
			query:   "limit=ten",
			wantErr: true,
		},
		{
			name:  "unknown keys are ignored",
			query: "foo=bar",
			all:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/partitions?"+tc.query, nil)
			params, err := ParsePartitionParams(req)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.all, params.All())
			if !tc.all {
				assert.Equal(t, tc.want, params)
			}
		})
	}
}
