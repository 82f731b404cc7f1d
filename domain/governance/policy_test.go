package governance

import (
	"testing"

	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
)

func TestBuildPolicySet_OnlyColumnsWithPolicy(t *testing.T) {
	node := &manifest.Node{Columns: []manifest.Column{
		{Name: "Email", Policy: hashPolicy()},
		{Name: "name"},
	}}
	ps := BuildPolicySet(node, "salt")
	if len(ps.Columns) != 1 {
		t.Fatalf("expected 1 policy column, got %d", len(ps.Columns))
	}
	if _, ok := ps.Columns["email"]; !ok {
		t.Fatal("expected lowercase key 'email'")
	}
}

func TestToGovernancePolicySet_DropOmittedEncryptionFallsBackToHash(t *testing.T) {
	enc := manifest.EncryptionPolicy()
	drop := manifest.DropPolicy()
	ps := PolicySet{Columns: map[string]manifest.PolicyType{
		"card": enc,
		"ssn":  drop,
	}}
	out := ps.ToGovernancePolicySet()
	if strategy, ok := out.ColumnPolicies["card"]; !ok || strategy != manifest.MaskHash {
		t.Fatalf("expected encryption to fall back to hash, got %v ok=%v", strategy, ok)
	}
	if _, ok := out.ColumnPolicies["ssn"]; ok {
		t.Fatal("drop policy must not appear in the plan-level policy set")
	}
}
