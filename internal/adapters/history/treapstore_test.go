package history_test

import (
	"context"
	"testing"
	"time"

	history "github.com/formsense/repkit/internal/adapters/history"
	. "github.com/smartystreets/goconvey/convey"
)

func entry(repIndex int, score float64) history.Entry {
	return history.Entry{
		RepIndex: repIndex,
		Score:    score,
		Duration: 1500 * time.Millisecond,
		StartTS:  time.Now(),
	}
}

func TestTreapStore_RecordAndRank(t *testing.T) {
	Convey("Given a store with three reps of distinct scores", t, func() {
		ctx := context.Background()
		s := history.NewTreapStore()
		So(s.Record(ctx, entry(1, 70)), ShouldBeNil)
		So(s.Record(ctx, entry(2, 90)), ShouldBeNil)
		So(s.Record(ctx, entry(3, 80)), ShouldBeNil)

		Convey("Then each rep reports its score-ordered rank", func() {
			e, err := s.ByIndex(ctx, 2)
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 1)

			e, err = s.ByIndex(ctx, 3)
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 2)

			e, err = s.ByIndex(ctx, 1)
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 3)
		})

		Convey("And Best returns the top-scoring rep", func() {
			best, err := s.Best(ctx)
			So(err, ShouldBeNil)
			So(best.RepIndex, ShouldEqual, 2)
			So(best.Score, ShouldEqual, 90)
		})

		Convey("And Count reflects the recorded reps", func() {
			So(s.Count(ctx), ShouldEqual, 3)
		})

		Convey("When a rep index is re-recorded", func() {
			So(s.Record(ctx, entry(1, 95)), ShouldBeNil)

			Convey("Then the new score replaces the old one", func() {
				So(s.Count(ctx), ShouldEqual, 3)
				e, err := s.ByIndex(ctx, 1)
				So(err, ShouldBeNil)
				So(e.Score, ShouldEqual, 95)
				So(e.Rank, ShouldEqual, 1)
			})
		})
	})

	Convey("Given an unknown rep index", t, func() {
		s := history.NewTreapStore()

		Convey("Then ByIndex returns ErrNotFound", func() {
			_, err := s.ByIndex(context.Background(), 42)
			So(err, ShouldEqual, history.ErrNotFound)
		})
	})
}

func TestTreapStore_TopN(t *testing.T) {
	Convey("Given reps with tied scores", t, func() {
		ctx := context.Background()
		s := history.NewTreapStore()
		So(s.Record(ctx, entry(1, 80)), ShouldBeNil)
		So(s.Record(ctx, entry(2, 90)), ShouldBeNil)
		So(s.Record(ctx, entry(3, 80)), ShouldBeNil)
		So(s.Record(ctx, entry(4, 60)), ShouldBeNil)

		Convey("When asking for the top three", func() {
			top, err := s.TopN(ctx, 3)
			So(err, ShouldBeNil)

			Convey("Then ties break by rep order", func() {
				So(top, ShouldHaveLength, 3)
				So(top[0].RepIndex, ShouldEqual, 2)
				So(top[1].RepIndex, ShouldEqual, 1)
				So(top[2].RepIndex, ShouldEqual, 3)
				So(top[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When asking for more than exist", func() {
			top, err := s.TopN(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 4)
		})

		Convey("When asking for zero", func() {
			top, err := s.TopN(ctx, 0)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)
		})
	})
}

func TestTreapStore_Stats(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := history.NewTreapStore()

		Convey("Then Stats reports ErrEmpty", func() {
			_, err := s.Stats(context.Background())
			So(err, ShouldEqual, history.ErrEmpty)
		})
	})

	Convey("Given recorded reps", t, func() {
		ctx := context.Background()
		s := history.NewTreapStore()
		So(s.Record(ctx, history.Entry{RepIndex: 1, Score: 80, Duration: time.Second, Faults: 1}), ShouldBeNil)
		So(s.Record(ctx, history.Entry{RepIndex: 2, Score: 90, Duration: 3 * time.Second, Faults: 0}), ShouldBeNil)

		Convey("Then the aggregate statistics are correct", func() {
			stats, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats.Reps, ShouldEqual, 2)
			So(stats.MeanScore, ShouldAlmostEqual, 85, 1e-9)
			So(stats.ScoreStdDev, ShouldBeGreaterThan, 0)
			So(stats.MeanDuration, ShouldEqual, 2*time.Second)
			So(stats.TotalFaults, ShouldEqual, 1)
			So(stats.BestRepIndex, ShouldEqual, 2)
			So(stats.WorstRepIndex, ShouldEqual, 1)
		})
	})
}
