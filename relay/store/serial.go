package store

import (
	"context"
	"sync"

	"github.com/m3rciful/feedbackbot/relay/model"
)

type serialized struct {
	mu   sync.Mutex
	repo Repository
}

// Serialize returns a Repository that runs at most one operation of repo at a time.
func Serialize(repo Repository) Repository {
	if s, ok := repo.(*serialized); ok {
		return s
	}
	return &serialized{repo: repo}
}

func (s *serialized) CreateInquiry(ctx context.Context, author model.Author, category model.Category, body string) (model.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.CreateInquiry(ctx, author, category, body)
}

func (s *serialized) GetInquiry(ctx context.Context, id int64) (model.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.GetInquiry(ctx, id)
}

func (s *serialized) ListRecentInquiries(ctx context.Context, limit int) ([]model.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.ListRecentInquiries(ctx, limit)
}

func (s *serialized) DeleteInquiry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.DeleteInquiry(ctx, id)
}

func (s *serialized) MarkResolved(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.MarkResolved(ctx, id)
}

func (s *serialized) AddReply(ctx context.Context, inquiryID, responderID int64, text string) (model.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.AddReply(ctx, inquiryID, responderID, text)
}

func (s *serialized) ListReplies(ctx context.Context, inquiryID int64) ([]model.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.ListReplies(ctx, inquiryID)
}

func (s *serialized) AddAdministrator(ctx context.Context, userID int64, username string, addedBy int64) (model.Administrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.AddAdministrator(ctx, userID, username, addedBy)
}

func (s *serialized) RemoveAdministrator(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.RemoveAdministrator(ctx, userID)
}

func (s *serialized) GetAdministrator(ctx context.Context, userID int64) (model.Administrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.GetAdministrator(ctx, userID)
}

func (s *serialized) ListAdministrators(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.ListAdministrators(ctx)
}

func (s *serialized) Administrators(ctx context.Context) ([]model.Administrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Administrators(ctx)
}
