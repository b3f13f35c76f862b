package admin

import (
	"context"
	"strconv"
	"time"
)

// ExportColumns is the fixed column order of accepted-candidate exports.
var ExportColumns = []string{
	"handle",
	"display name",
	"followers",
	"avg recent views",
	"engagement rate",
	"messaging handle",
	"email",
	"phone",
	"website",
	"bio",
	"level found",
	"date",
}

// ExportDateLayout formats the date column.
const ExportDateLayout = "2006-01-02 15:04:05"

// ExportRow is one accepted candidate in export form.
type ExportRow struct {
	Handle            string    `json:"handle"`
	DisplayName       string    `json:"display_name"`
	Followers         int64     `json:"followers"`
	AvgRecentViews    int64     `json:"avg_recent_views"`
	EngagementRatePct float64   `json:"engagement_rate"`
	MessagingHandle   string    `json:"messaging_handle"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Website           string    `json:"website"`
	Bio               string    `json:"bio"`
	Level             int       `json:"level_found"`
	AcceptedAt        time.Time `json:"date"`
}

// Values returns the row as strings in ExportColumns order.
func (r ExportRow) Values() []string {
	return []string{
		r.Handle,
		r.DisplayName,
		strconv.FormatInt(r.Followers, 10),
		strconv.FormatInt(r.AvgRecentViews, 10),
		strconv.FormatFloat(r.EngagementRatePct, 'f', 2, 64),
		r.MessagingHandle,
		r.Email,
		r.Phone,
		r.Website,
		r.Bio,
		strconv.Itoa(r.Level),
		r.AcceptedAt.UTC().Format(ExportDateLayout),
	}
}

// ExportAccepted returns every accepted candidate, oldest first.
func (s *Service) ExportAccepted(ctx context.Context) ([]ExportRow, error) {
	accepted, err := s.store.ListAccepted(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, 0, len(accepted))
	for _, c := range accepted {
		rows = append(rows, ExportRow{
			Handle:            c.Handle,
			DisplayName:       c.DisplayName,
			Followers:         c.Metrics.Followers,
			AvgRecentViews:    c.Metrics.AvgRecentViews,
			EngagementRatePct: c.Metrics.EngagementRatePct,
			MessagingHandle:   c.Contacts.MessagingHandle,
			Email:             c.Contacts.Email,
			Phone:             c.Contacts.Phone,
			Website:           c.Contacts.Website,
			Bio:               c.Bio,
			Level:             c.Level,
			AcceptedAt:        c.AcceptedAt,
		})
	}
	return rows, nil
}
