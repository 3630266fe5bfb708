package server

import (
	"net/http"

	"github.com/gwclose/gwclose/core"
	"github.com/gwclose/gwclose/internal/pipeline"
	"github.com/gwclose/gwclose/internal/workflow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricDescriptions = map[string]*prometheus.Desc{
		"requests":        prometheus.NewDesc("gwclose_http_requests_total", "Total number of API requests", nil, nil),
		"failures":        prometheus.NewDesc("gwclose_http_failures_total", "Total number of API requests answered with an error", nil, nil),
		"inflight":        prometheus.NewDesc("gwclose_http_requests_in_flight", "", nil, nil),
		"trails":          prometheus.NewDesc("gwclose_trails", "Number of loaded trail features", nil, nil),
		"trails_skipped":  prometheus.NewDesc("gwclose_trails_skipped", "Number of source features that were not trails", nil, nil),
		"recent_records":  prometheus.NewDesc("gwclose_recent_records", "Number of cached closure records", nil, nil),
		"workflow_state":  prometheus.NewDesc("gwclose_workflow_state", "Current workflow state", []string{"state"}, nil),
		"server_info":     prometheus.NewDesc("gwclose_server_info", "Server info", []string{"version", "provider"}, nil),
		"start_time":      prometheus.NewDesc("gwclose_start_time_seconds", "", nil, nil),
		"candidate_parts": prometheus.NewDesc("gwclose_candidate_parts", "Number of parts in the closure candidate", nil, nil),
	}

	pipelineDurations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "gwclose_pipeline_duration_seconds",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
	}, []string{"stage"},
	)

	requestDurations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "gwclose_http_duration_seconds",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
	}, []string{"route"},
	)

	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gwclose_submissions_total",
		Help: "Closure submissions by outcome",
	}, []string{"outcome"},
	)
)

func observeRun(stats pipeline.Stats) {
	pipelineDurations.WithLabelValues("clip").Observe(stats.Clip.Seconds())
	pipelineDurations.WithLabelValues("dissolve").Observe(stats.Dissolve.Seconds())
}

func (s *Server) MetricsIndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`<html><head>
<title>gwclose ` + core.Version + `</title></head>
<body><h1>gwclose ` + core.Version + `</h1>
<p><a href='/state'>State</a></p>
<p><a href='/trails'>Trails</a></p>
<p><a href='/metrics'>Metrics</a></p>
</body></html>`))
}

func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector(),
		pipelineDurations,
		requestDurations,
		submissions,
		s,
	)

	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range metricDescriptions {
		ch <- desc
	}
}

func (s *Server) Collect(ch chan<- prometheus.Metric) {
	gauge := func(name string, val float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(metricDescriptions[name],
			prometheus.GaugeValue, val, labels...)
	}
	counter := func(name string, val float64) {
		ch <- prometheus.MustNewConstMetric(metricDescriptions[name],
			prometheus.CounterValue, val)
	}
	counter("requests", float64(s.requests.Load()))
	counter("failures", float64(s.failures.Load()))
	gauge("inflight", float64(s.inflight.Load()))
	gauge("recent_records", float64(s.records.Len()))
	if s.opts.Trails != nil {
		gauge("trails", float64(s.opts.Trails.Len()))
		gauge("trails_skipped", float64(s.opts.Trails.Skipped))
	}

	snap := s.wf.Snapshot()
	for _, st := range []workflow.State{workflow.Idle, workflow.Drawing,
		workflow.ClipReady, workflow.SubmissionPending} {
		var val float64
		if st == snap.State {
			val = 1
		}
		gauge("workflow_state", val, st.String())
	}
	gauge("candidate_parts", float64(snap.Candidate.NumParts()))

	provider := "tidwall"
	if s.opts.Workflow.Provider != nil {
		provider = s.opts.Workflow.Provider.Name()
	}
	gauge("server_info", 1.0, core.Version, provider)
	gauge("start_time", float64(s.started.Unix()))
}
