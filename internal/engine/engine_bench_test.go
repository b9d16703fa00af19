package engine

import (
	"strconv"
	"testing"
	"time"

	"notifly-go/internal/counter"
	"notifly-go/internal/model"
)

func BenchmarkSelect(b *testing.B) {
	campaigns := make([]model.Campaign, 0, 200)
	for i := 0; i < 200; i++ {
		c := baseCampaign("bench_" + strconv.Itoa(i))
		c.Delay = int64(i % 5)
		c.LastUpdated = int64(i)
		if i%2 == 0 {
			c.SegmentInfo = segment(model.Group{Conditions: []model.Condition{
				userCondition("plan", "pro"),
			}})
		}
		campaigns = append(campaigns, c)
	}

	counters := counter.NewStore([]counter.Row{
		{Date: counter.Day(now), EventName: "open_app", Count: 4},
	})
	user := userWith(map[string]model.Value{"plan": model.TextValue("pro")})
	in := Input{EventName: "purchase", Now: time.Now()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Select(campaigns, in, counters, user)
	}
}
