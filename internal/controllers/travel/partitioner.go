package travelController

import (
	"fmt"
	. "relay/internal/models"
	"time"
)

// MonthKey identifies the calendar month a report partition belongs to.
type MonthKey struct {
	Year  int
	Month time.Month
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%s %d", k.Month, k.Year)
}

// MonthPartition is one report's worth of travel days. One expense report
// covers one month.
type MonthPartition struct {
	Key  MonthKey
	Days TravelData
}

// PartitionByMonth splits travel data at a month boundary. The batch cadence
// is weekly or monthly, so a window spans at most two months; when the first
// trip's arrival and the last trip's departure fall in the same month there
// is a single partition, otherwise the day list is split at the first day
// belonging to the later month.
func PartitionByMonth(travelData TravelData) []MonthPartition {
	trips := travelData.Trips()
	if len(trips) == 0 {
		return nil
	}

	firstKey := monthKeyOf(trips[0].ArriveTime, trips[0].LeaveTime)
	lastKey := monthKeyOf(trips[len(trips)-1].LeaveTime, trips[len(trips)-1].ArriveTime)

	if firstKey == lastKey {
		return []MonthPartition{{Key: firstKey, Days: travelData}}
	}

	for i, day := range travelData {
		if len(day) == 0 {
			continue
		}
		dayKey := monthKeyOf(day[0].ArriveTime, day[0].LeaveTime)
		if dayKey == lastKey {
			return []MonthPartition{
				{Key: firstKey, Days: travelData[:i]},
				{Key: lastKey, Days: travelData[i:]},
			}
		}
	}

	return []MonthPartition{{Key: firstKey, Days: travelData}}
}

// monthKeyOf reads the month from the preferred timestamp, falling back to
// the other endpoint when the preferred one is unknown.
func monthKeyOf(preferred, fallback *time.Time) MonthKey {
	t := preferred
	if t == nil {
		t = fallback
	}
	if t == nil {
		return MonthKey{}
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}
}
