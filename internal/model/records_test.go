package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRecord_NormalizeLegacy(t *testing.T) {
	raw := `{"name":"Amina","phoneNumber":"+254700000001","county":"Nairobi","role":"worker","pinHash":"x","publicKey":"G1","preferred_roles":["cooking"]}`

	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	u = u.Normalize()

	assert.Equal(t, "+254700000001", u.Phone)
	assert.Equal(t, []string{"cooking"}, u.WorkTypes)
	assert.Empty(t, u.PhoneNumber)
	assert.Nil(t, u.PreferredRoles)
}

func TestUserRecord_PublicOmitsPIN(t *testing.T) {
	u := UserRecord{Name: "Amina", Phone: "+254700000001", PINHash: "secret", PublicKey: "G1", Role: RoleWorker}

	b, err := json.Marshal(u.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
	assert.NotContains(t, string(b), "pinHash")
}

func TestCertificate_RefDropsSecret(t *testing.T) {
	c := Certificate{TransactionHash: "h", AssetCode: CertificateAssetCode, DistributorSecret: "S123"}

	b, err := json.Marshal(c.Ref())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "S123")
	assert.Contains(t, string(b), `"assetCode":"CHM"`)
}

func TestAttestationRecord_Normalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"current", `{"employee":"G1","workType":"cook"}`, "G1"},
		{"legacy", `{"employee_pk":"G2","workType":"cook"}`, "G2"},
		{"both prefer current", `{"employee":"G1","employee_pk":"G2"}`, "G1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a AttestationRecord
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			a = a.Normalize()
			assert.Equal(t, tt.want, a.Employee)
			assert.Empty(t, a.EmployeePK)
		})
	}
}
