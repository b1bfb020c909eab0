package optimizer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/lakeops/lakeops/internal/workspace"
)

// FleetAnalysis is what the aggregator needs from any per-cluster analysis:
// how many findings it holds and the key to rank it by. Spark-config analyses
// have no savings concept and rank by issue count instead.
type FleetAnalysis interface {
	IssueCount() int
	SortKey() float64
}

func (a *SparkConfigAnalysis) IssueCount() int  { return a.TotalIssues }
func (a *SparkConfigAnalysis) SortKey() float64 { return float64(a.TotalIssues) }

func (a *CostAnalysis) IssueCount() int  { return a.TotalRecommendations }
func (a *CostAnalysis) SortKey() float64 { return a.TotalPotentialSavingsPercent }

func (a *AutoscalingAnalysis) IssueCount() int  { return a.TotalIssues }
func (a *AutoscalingAnalysis) SortKey() float64 { return a.TotalPotentialSavingsPercent }

func (a *NodeTypeAnalysis) IssueCount() int  { return a.TotalIssues }
func (a *NodeTypeAnalysis) SortKey() float64 { return a.TotalPotentialSavingsPercent }

// AnalyzeFleet runs one analyzer across a cluster list. A panic while
// analyzing one cluster is recovered and logged and that cluster is skipped;
// a fleet-wide scan must survive any single bad record. Results keep only
// analyses with findings unless includeNoIssues is set, ranked descending by
// the analysis sort key (stable, so input order breaks ties).
func AnalyzeFleet[T FleetAnalysis](clusters []workspace.Cluster, analyze func(*workspace.Cluster) T, includeNoIssues bool, log *zap.SugaredLogger) []T {
	results := make([]T, 0, len(clusters))
	for i := range clusters {
		cluster := &clusters[i]
		analysis, ok := analyzeOne(cluster, analyze, log)
		if !ok {
			continue
		}
		if analysis.IssueCount() > 0 || includeNoIssues {
			results = append(results, analysis)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SortKey() > results[j].SortKey()
	})
	return results
}

func analyzeOne[T FleetAnalysis](cluster *workspace.Cluster, analyze func(*workspace.Cluster) T, log *zap.SugaredLogger) (analysis T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Warnw("could not analyze cluster", "cluster_id", cluster.ClusterID, "panic", r)
			}
			ok = false
		}
	}()
	return analyze(cluster), true
}
