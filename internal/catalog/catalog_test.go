package catalog

import "testing"

func TestEveryMappedPairIsAllowed(t *testing.T) {
	for _, campaign := range Campaigns {
		clusters := CampaignClusters[campaign]
		if len(clusters) == 0 {
			t.Errorf("campaign %q has no clusters", campaign)
			continue
		}
		for _, cluster := range clusters {
			if !IsClusterAllowedForCampaign(campaign, cluster) {
				t.Errorf("IsClusterAllowedForCampaign(%q, %q) = false, want true", campaign, cluster)
			}
			if !IsValidCluster(cluster) {
				t.Errorf("IsValidCluster(%q) = false, want true", cluster)
			}
		}
	}
}

func TestClusterFromOtherCampaignRejected(t *testing.T) {
	// "Working capital" belongs to the business campaign only.
	if IsClusterAllowedForCampaign("Consumer Credit - Individual", "Working capital") {
		t.Error("business cluster accepted for individual campaign")
	}
	if IsClusterAllowedForCampaign("Insurance", "First home") {
		t.Error("mortgage cluster accepted for insurance campaign")
	}
}

func TestIsValidCampaign(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"Consumer Credit - Individual", true},
		{"Insurance", true},
		{"consumer credit - individual", false}, // exact match required
		{"Crypto Trading", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidCampaign(tt.value); got != tt.want {
			t.Errorf("IsValidCampaign(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestUnknownCampaignHasNoClusters(t *testing.T) {
	if IsClusterAllowedForCampaign("Unknown", "Young singles") {
		t.Error("unknown campaign should reject every cluster")
	}
	if got := ClustersForCampaign("Unknown"); got != nil {
		t.Errorf("ClustersForCampaign(Unknown) = %v, want nil", got)
	}
}

func TestCampaignsForCluster(t *testing.T) {
	got := CampaignsForCluster("Young singles")
	if len(got) != 1 || got[0] != "Consumer Credit - Individual" {
		t.Errorf("CampaignsForCluster(Young singles) = %v", got)
	}
	if got := CampaignsForCluster("no such cluster"); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestClustersFlatListDeduplicated(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range Clusters {
		if seen[c] {
			t.Errorf("duplicate cluster %q in flat list", c)
		}
		seen[c] = true
	}
}
