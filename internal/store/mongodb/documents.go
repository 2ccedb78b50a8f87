package mongodb

import (
	"time"

	"costmanager/internal/core"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type costDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	UserID      int64         `bson:"userid"`
	Description string        `bson:"description"`
	Category    string        `bson:"category"`
	Sum         float64       `bson:"sum"`
	CreatedAt   time.Time     `bson:"created_at"`
}

type reportItemDoc struct {
	Day         int     `bson:"day"`
	Description string  `bson:"description"`
	Sum         float64 `bson:"sum"`
}

type reportDoc struct {
	UserID int64                      `bson:"userid"`
	Year   int                        `bson:"year"`
	Month  int                        `bson:"month"`
	Costs  map[string][]reportItemDoc `bson:"costs"`
}

type userDoc struct {
	ID        int64     `bson:"id"`
	FirstName string    `bson:"first_name"`
	LastName  string    `bson:"last_name"`
	Birthday  time.Time `bson:"birthday"`
}

type logDoc struct {
	ID        string    `bson:"_id"`
	Level     string    `bson:"level"`
	Message   string    `bson:"message"`
	Timestamp time.Time `bson:"timestamp"`
}

func toCostDoc(c core.Cost) costDoc {
	return costDoc{
		UserID:      c.UserID,
		Description: c.Description,
		Category:    string(c.Category),
		Sum:         c.Sum,
		CreatedAt:   c.CreatedAt.UTC(),
	}
}

func (d costDoc) toCore() core.Cost {
	return core.Cost{
		Description: d.Description,
		Category:    core.Category(d.Category),
		UserID:      d.UserID,
		Sum:         d.Sum,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

func toReportDoc(r core.MonthlyReport) reportDoc {
	costs := make(map[string][]reportItemDoc, len(core.Categories))
	for c, items := range r.Costs.Clone() {
		docs := make([]reportItemDoc, len(items))
		for i, it := range items {
			docs[i] = reportItemDoc{Day: it.Day, Description: it.Description, Sum: it.Sum}
		}
		costs[string(c)] = docs
	}
	return reportDoc{UserID: r.UserID, Year: r.Year, Month: r.Month, Costs: costs}
}

func (d reportDoc) toCore() core.MonthlyReport {
	grouped := make(core.GroupedCosts, len(d.Costs))
	for c, docs := range d.Costs {
		items := make([]core.ReportItem, len(docs))
		for i, it := range docs {
			items[i] = core.ReportItem{Day: it.Day, Description: it.Description, Sum: it.Sum}
		}
		grouped[core.Category(c)] = items
	}
	return core.MonthlyReport{UserID: d.UserID, Year: d.Year, Month: d.Month, Costs: grouped.Clone()}
}

func toUserDoc(u core.User) userDoc {
	return userDoc{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Birthday: u.Birthday.UTC()}
}

func (d userDoc) toCore() core.User {
	return core.User{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName, Birthday: d.Birthday.UTC()}
}

func toLogDoc(e core.LogEntry) logDoc {
	return logDoc{ID: e.ID, Level: e.Level, Message: e.Message, Timestamp: e.Timestamp.UTC()}
}

func (d logDoc) toCore() core.LogEntry {
	return core.LogEntry{ID: d.ID, Level: d.Level, Message: d.Message, Timestamp: d.Timestamp.UTC()}
}
