package raftlog

import "github.com/prometheus/client_golang/prometheus"

// Collector is a prometheus.Collector exposing a Log's cached state and the
// underlying engine's status. It is the ambient observability layer every
// long-running storage component in the wider Raft ecosystem carries
// alongside it; it reports metrics only and never drives any consensus
// decision.
type Collector struct {
	log *Log

	lastIndex   *prometheus.Desc
	commitIndex *prometheus.Desc
	currentTerm *prometheus.Desc
	engineKeys  *prometheus.Desc
}

// NewCollector returns a Collector reporting on log.
func NewCollector(log *Log) *Collector {
	return &Collector{
		log: log,
		lastIndex: prometheus.NewDesc(
			"raftlog_last_index", "Index of the last stored log entry.", nil, nil),
		commitIndex: prometheus.NewDesc(
			"raftlog_commit_index", "Index of the highest committed log entry.", nil, nil),
		currentTerm: prometheus.NewDesc(
			"raftlog_current_term", "Current Raft term recorded by the log.", nil, nil),
		engineKeys: prometheus.NewDesc(
			"raftlog_engine_keys", "Number of keys held by the storage engine.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lastIndex
	ch <- c.commitIndex
	ch <- c.currentTerm
	ch <- c.engineKeys
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	last, _ := c.log.LastIndex()
	commit, _ := c.log.CommitIndex()
	term, _ := c.log.TermVote()

	ch <- prometheus.MustNewConstMetric(c.lastIndex, prometheus.GaugeValue, float64(last))
	ch <- prometheus.MustNewConstMetric(c.commitIndex, prometheus.GaugeValue, float64(commit))
	ch <- prometheus.MustNewConstMetric(c.currentTerm, prometheus.GaugeValue, float64(term))

	if status, err := c.log.Status(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.engineKeys, prometheus.GaugeValue, float64(status.KeyCount))
	}
}

var _ prometheus.Collector = (*Collector)(nil)
