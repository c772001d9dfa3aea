package model

// IVRow is one row of the information value summary, one per binned feature.
type IVRow struct {
	Name     string  `json:"name"`
	Dtype    string  `json:"dtype"`
	NBins    int     `json:"n_bins"`
	IV       float64 `json:"iv"`
	Gini     float64 `json:"gini"`
	Selected bool    `json:"selected"`
}

// BinRow is the per-bin detail of a fitted binning.
type BinRow struct {
	Name      string  `json:"name"`
	Bin       string  `json:"bin"`
	Count     int     `json:"count"`
	CountPct  float64 `json:"count_pct"`
	NonEvent  int     `json:"non_event"`
	Event     int     `json:"event"`
	EventRate float64 `json:"event_rate"`
	WoE       float64 `json:"woe"`
	IV        float64 `json:"iv"`
}

// ClusterRow is one row of the cluster table. IV is zero when no IV
// table was available during selection.
type ClusterRow struct {
	Cluster  int     `json:"cluster"`
	Variable string  `json:"variable"`
	RSOwn    float64 `json:"rs_own"`
	RSNC     float64 `json:"rs_nc"`
	RSRatio  float64 `json:"rs_ratio"`
	IV       float64 `json:"iv"`
	HasIV    bool    `json:"has_iv"`
	Selected bool    `json:"cluster_iv_selection"`
}

// BaseVariable names the intercept row of a scorecard table.
const BaseVariable = "(base)"

// ScorecardRow is one (feature, bin, points) allocation. The base row has
// Variable == BaseVariable.
type ScorecardRow struct {
	Variable    string  `json:"variable"`
	Bin         string  `json:"bin"`
	Count       int     `json:"count"`
	EventRate   float64 `json:"event_rate"`
	WoE         float64 `json:"woe"`
	Coefficient float64 `json:"coefficient"`
	Points      int     `json:"points"`
}
