// Package metrics exposes Prometheus instruments for the anti-nuke engine.
//
// Detection:
//   - antinuke_actions_total{action}: actions recorded by the rate tracker
//   - antinuke_breaches_total{kind}: threshold breaches (action, message_spam)
//   - antinuke_tracked_keys{tracker}: live (guild, actor) windows
//
// Response:
//   - antinuke_remediations_total{tier, outcome}: escalation results
//   - antinuke_failover_steps_total{step, outcome}: owner-compromise steps
//   - antinuke_sweep_removed_total: windows dropped by the garbage collector
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antinuke_actions_total",
			Help: "Destructive actions recorded by the action rate tracker",
		},
		[]string{"action"},
	)

	Breaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antinuke_breaches_total",
			Help: "Sliding-window threshold breaches",
		},
		[]string{"kind"}, // "action", "message_spam"
	)

	TrackedKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "antinuke_tracked_keys",
			Help: "Live (guild, actor) windows held in memory",
		},
		[]string{"tracker"},
	)

	Remediations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antinuke_remediations_total",
			Help: "Escalation remediation attempts by tier action and outcome",
		},
		[]string{"tier", "outcome"},
	)

	FailoverSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antinuke_failover_steps_total",
			Help: "Owner-compromise failover steps by outcome",
		},
		[]string{"step", "outcome"},
	)

	SweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "antinuke_sweep_removed_total",
			Help: "Windows removed by the tracker garbage collector",
		},
	)
)

func Outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
