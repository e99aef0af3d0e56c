// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package catalog holds the static campaign/cluster taxonomy and its
// validators. The external text engine is the source of truth for tone and
// benefits; this package is the typed mirror used for request validation.
package catalog

import "sort"

// Campaigns is the closed set of marketing verticals an operator can select.
// The names must match the text engine's catalog exactly.
var Campaigns = []string{
	"Consumer Credit - Individual",
	"Consumer Credit - Business",
	"Term Deposit",
	"Mortgage",
	"Debt Refinancing",
	"Checking Account Opening",
	"Credit Card Opening",
	"Insurance",
}

// CampaignClusters maps each campaign to the clusters allowed within it.
var CampaignClusters = map[string][]string{
	"Consumer Credit - Individual": {
		"Family car",
		"Young singles",
		"Motorbike upgrade",
		"Home improvement",
		"Family projects",
		"Personal projects",
		"Debt reorganization - young",
		"Debt reorganization - senior",
		"Family travel",
		"Solo travel",
	},
	"Consumer Credit - Business": {
		"Working capital",
		"Asset investment",
		"Business liability restructuring",
		"Business expansion",
		"Tax season capital",
	},
	"Term Deposit": {
		"Goal savings",
		"Emergency fund",
		"Conservative investment",
		"Short-term plan",
		"Long-term plan",
	},
	"Mortgage": {
		"First home",
		"Home upgrade",
		"Real estate investment",
		"Mortgage refinance",
	},
	"Debt Refinancing": {
		"Consolidate consumer debt",
		"Lower mortgage payment",
		"Reorganize credit cards",
		"Tidy credit lines and overdrafts",
	},
	"Checking Account Opening": {
		"Salary account",
		"SMB account",
		"High income account",
		"Independent professional account",
	},
	"Credit Card Opening": {
		"International travel",
		"Everyday purchases",
		"Online shopping",
		"High income segment",
	},
	"Insurance": {
		"Car insurance",
		"Life insurance",
		"Home insurance",
		"Travel insurance",
		"Health insurance",
	},
}

// Clusters is the flat, deduplicated union of every campaign's clusters.
var Clusters = flatClusters()

func flatClusters() []string {
	seen := make(map[string]bool)
	var out []string
	for _, campaign := range Campaigns {
		for _, cluster := range CampaignClusters[campaign] {
			if !seen[cluster] {
				seen[cluster] = true
				out = append(out, cluster)
			}
		}
	}
	sort.Strings(out)
	return out
}

// IsValidCampaign reports whether v is an exact member of the campaign catalog.
func IsValidCampaign(v string) bool {
	for _, c := range Campaigns {
		if c == v {
			return true
		}
	}
	return false
}

// IsValidCluster reports whether v appears in any campaign's cluster set.
func IsValidCluster(v string) bool {
	for _, clusters := range CampaignClusters {
		for _, c := range clusters {
			if c == v {
				return true
			}
		}
	}
	return false
}

// IsClusterAllowedForCampaign reports whether cluster belongs to the
// campaign's mapped set. Unknown campaigns yield false.
func IsClusterAllowedForCampaign(campaign, cluster string) bool {
	for _, c := range CampaignClusters[campaign] {
		if c == cluster {
			return true
		}
	}
	return false
}

// ClustersForCampaign returns the clusters valid for a campaign,
// or nil for unknown campaigns.
func ClustersForCampaign(campaign string) []string {
	return CampaignClusters[campaign]
}

// CampaignsForCluster returns every campaign whose set contains cluster.
func CampaignsForCluster(cluster string) []string {
	var out []string
	for _, campaign := range Campaigns {
		if IsClusterAllowedForCampaign(campaign, cluster) {
			out = append(out, campaign)
		}
	}
	return out
}
