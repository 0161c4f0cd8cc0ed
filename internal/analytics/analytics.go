// Package analytics serves a tenant's dashboard numbers: documents and
// storage, summary usage against the quota, team size, and daily volume.
//
// Everything is read through the scoped stores, so a tenant only ever sees
// its own rows. Quota figures come from the entitlement ledger, never from
// counting summaries.
package analytics

import (
	"context"
	"math"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/documents"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/summaries"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/users"
)

const (
	// StorageLimitBytes is the storage allowance shown on the dashboard.
	StorageLimitBytes = 10 << 30

	DefaultRecentLimit = 5
	MaxRecentLimit     = 50

	// UsageWindowDays is the length of the usage-over-time series, today included.
	UsageWindowDays = 30
)

// DocumentSource is the part of the document store analytics reads.
type DocumentSource interface {
	Usage(ctx context.Context, scope tenant.Scope) (documents.Usage, error)
	List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*documents.Document, error)
}

// SummarySource is the part of the summary store analytics reads.
type SummarySource interface {
	CountByDay(ctx context.Context, scope tenant.Scope, since time.Time) ([]summaries.DayCount, error)
	ListByDocument(ctx context.Context, scope tenant.Scope, documentID string) ([]*summaries.Summary, error)
}

// MemberSource lists a tenant's users.
type MemberSource interface {
	List(ctx context.Context, scope tenant.Scope) ([]*users.User, error)
}

// QuotaSource returns the tenant's ledger row.
type QuotaSource interface {
	Account(ctx context.Context, scope tenant.Scope) (*entitlement.Account, error)
}

// Stats is the dashboard summary for one tenant.
type Stats struct {
	DocumentsProcessed int64              `json:"documentsProcessed"`
	SummariesThisMonth int64              `json:"summariesThisMonth"`
	SummariesUsed      int64              `json:"summariesUsed"`
	SummariesLimit     int64              `json:"summariesLimit"`
	SummariesRemaining int64              `json:"summariesRemaining"`
	PlanTier           entitlement.Tier   `json:"planTier"`
	SubscriptionStatus entitlement.Status `json:"subscriptionStatus"`
	ActiveTeamMembers  int                `json:"activeTeamMembers"`
	StorageUsedBytes   int64              `json:"storageUsedBytes"`
	StorageUsedGB      float64            `json:"storageUsedGb"`
	StorageLimitGB     float64            `json:"storageLimitGb"`
}

// RecentDocument is a row of the recent-documents widget.
type RecentDocument struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     documents.Status `json:"status"`
	Summarized bool             `json:"summarized"`
	UploadedBy string           `json:"uploadedBy"`
	UploadedAt time.Time        `json:"uploadedAt"`
	SizeBytes  int64            `json:"size"`
}

// UsagePoint is one day of the usage-over-time series.
type UsagePoint struct {
	Date      string `json:"date"`  // "Jan 02"
	Day       string `json:"day"`   // "2006-01-02"
	Summaries int64  `json:"summaries"`
}

// Service computes tenant analytics.
type Service struct {
	documents DocumentSource
	summaries SummarySource
	members   MemberSource
	quota     QuotaSource
	now       func() time.Time
}

// NewService creates an analytics service over the scoped stores.
func NewService(docs DocumentSource, sums SummarySource, members MemberSource, quota QuotaSource) *Service {
	return &Service{documents: docs, summaries: sums, members: members, quota: quota, now: time.Now}
}

// Stats returns the scope's dashboard numbers.
func (s *Service) Stats(ctx context.Context, scope tenant.Scope) (*Stats, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	usage, err := s.documents.Usage(ctx, scope)
	if err != nil {
		return nil, err
	}
	acct, err := s.quota.Account(ctx, scope)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	days, err := s.summaries.CountByDay(ctx, scope, monthStart(s.now()))
	if err != nil {
		return nil, err
	}

	st := &Stats{
		DocumentsProcessed: usage.Count,
		SummariesUsed:      acct.UsageCount,
		SummariesLimit:     acct.UsageLimit,
		SummariesRemaining: max(0, acct.UsageLimit-acct.UsageCount),
		PlanTier:           acct.Tier,
		SubscriptionStatus: acct.Status,
		StorageUsedBytes:   usage.Bytes,
		StorageUsedGB:      toGB(usage.Bytes),
		StorageLimitGB:     toGB(StorageLimitBytes),
	}
	for _, d := range days {
		st.SummariesThisMonth += d.Count
	}
	for _, m := range members {
		if m.Status == users.StatusActive {
			st.ActiveTeamMembers++
		}
	}
	return st, nil
}

// RecentDocuments returns the newest documents with uploader names. limit
// is clamped to [1, MaxRecentLimit].
func (s *Service) RecentDocuments(ctx context.Context, scope tenant.Scope, limit int) ([]RecentDocument, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	docs, err := s.documents.List(ctx, scope, limit, nil)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	out := make([]RecentDocument, 0, len(docs))
	for _, d := range docs {
		sums, err := s.summaries.ListByDocument(ctx, scope, d.ID)
		if err != nil {
			return nil, err
		}
		uploader, ok := names[d.UploadedBy]
		if !ok || uploader == "" {
			uploader = "Unknown"
		}
		out = append(out, RecentDocument{
			ID:         d.ID,
			Name:       d.Filename,
			Status:     d.Status,
			Summarized: len(sums) > 0,
			UploadedBy: uploader,
			UploadedAt: d.CreatedAt,
			SizeBytes:  d.SizeBytes,
		})
	}
	return out, nil
}

// UsageOverTime returns one point per UTC day for the last UsageWindowDays
// days, oldest first, with zero-filled gaps.
func (s *Service) UsageOverTime(ctx context.Context, scope tenant.Scope) ([]UsagePoint, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	today := dayStart(s.now())
	start := today.AddDate(0, 0, -(UsageWindowDays - 1))
	counts, err := s.summaries.CountByDay(ctx, scope, start)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day.Format(time.DateOnly)] = c.Count
	}

	out := make([]UsagePoint, 0, UsageWindowDays)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		out = append(out, UsagePoint{Date: day.Format("Jan 02"), Day: key, Summaries: byDay[key]})
	}
	return out, nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// toGB converts bytes to GiB rounded to two decimals.
func toGB(b int64) float64 {
	return math.Round(float64(b)/(1<<30)*100) / 100
}
