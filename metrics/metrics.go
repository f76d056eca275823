package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "wasp"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "units_total",
		Help:      "Count of executed spec units",
	}, []string{
		"run_id",
		"unit",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of spec test runs",
	}, []string{
		"run_id",
		"result",
	})

	specTestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "spec_test_total",
		Help:      "Total number of spec tests",
	}, []string{
		"run_id",
	})

	specTestPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "spec_test_passed",
		Help:      "Number of passed spec tests",
	}, []string{
		"run_id",
	})

	specTestFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "spec_test_failed",
		Help:      "Number of failed spec tests",
	}, []string{
		"run_id",
	})

	specTestSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "spec_test_skipped",
		Help:      "Number of skipped spec tests",
	}, []string{
		"run_id",
	})

	specRunDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "spec_run_duration",
		Help:      "Duration of spec test runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordUnit records the outcome of a single executed unit.
func RecordUnit(runID string, unit string, pass bool) {
	result := resultLabel(pass)
	if Debug {
		log.Debug("metric inc",
			"m", "units_total",
			"run_id", runID,
			"unit", unit,
			"result", result)
	}
	unitsTotal.WithLabelValues(runID, unit, result).Inc()
}

// RecordRun records the aggregate outcome of a whole run.
func RecordRun(
	runID string,
	pass bool,
	total int,
	passed int,
	failed int,
	skipped int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, resultLabel(pass)).Set(1)
	specTestTotal.WithLabelValues(runID).Add(float64(total))
	specTestPassed.WithLabelValues(runID).Add(float64(passed))
	specTestFailed.WithLabelValues(runID).Add(float64(failed))
	specTestSkipped.WithLabelValues(runID).Add(float64(skipped))
	specRunDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func resultLabel(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}
