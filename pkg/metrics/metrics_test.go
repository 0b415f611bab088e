package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			registryOpt := WithPrometheusRegistry(prometheus.NewRegistry())

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(registryOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording frame metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordFrameProcessed()
					RecordFrameGated()
					RecordJointOccluded()
					RecordJointDropped()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording rep metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordRepCompleted()
					RecordRepRejected()
					ObserveRepScore(87)
					ObserveRepDuration(1.8)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording coaching and config metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordCueFired()
					RecordFaultDetected()
					RecordPredicatePanic()
				}, ShouldNotPanic)
			})
		})

		Convey("When updating sink queue metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					UpdateSinkQueueSize(3)
					UpdateSinkQueueCapacity(256)
					UpdateSinkQueueUtilization(3.0 / 256.0)
					RecordSinkEnqueue()
					RecordSinkDequeue()
					RecordSinkDropped()
				}, ShouldNotPanic)
			})
		})

		Convey("When updating session metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					UpdateActiveSessions(1)
					UpdateHistoryReps(12)
					RecordErrorByComponent("sink", "queue_full")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the global metrics registry", t, func() {
		Convey("When gathering registered metrics", func() {
			families, err := GetRegistry().Gather()

			Convey("Then the pipeline metrics are present", func() {
				So(err, ShouldBeNil)
				names := make(map[string]bool, len(families))
				for _, fam := range families {
					names[fam.GetName()] = true
				}
				So(names["repkit_pipeline_frames_processed_total"], ShouldBeTrue)
				So(names["repkit_pipeline_reps_completed_total"], ShouldBeTrue)
				So(names["repkit_pipeline_rep_score"], ShouldBeTrue)
			})
		})
	})
}
