package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

// JobPosting is the input of Post.
type JobPosting struct {
	EmployerID   string `json:"employerId"`
	EmployerName string `json:"employerName"`
	Title        string `json:"title"`
	WorkType     string `json:"workType"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Salary       string `json:"salary,omitempty"`
	IsLiveIn     *bool  `json:"isLiveIn"`
}

func (p JobPosting) Validate() error {
	required := []struct{ name, value string }{
		{"employerId", p.EmployerID},
		{"employerName", p.EmployerName},
		{"title", p.Title},
		{"workType", p.WorkType},
		{"description", p.Description},
		{"location", p.Location},
	}
	for _, f := range required {
		if f.value == "" {
			return model.NewValidationError(f.name, "is required")
		}
	}
	if p.IsLiveIn == nil {
		return model.NewValidationError("isLiveIn", "is required")
	}
	return nil
}

// PostedJob is a job together with the transaction that anchored it.
type PostedJob struct {
	model.JobRecord
	StellarTx string `json:"stellarTx"`
	Message   string `json:"message"`
}

type Jobs struct {
	platform *Platform
	anchor   *Anchor
	index    *Index
	now      func() time.Time
	logger   *logger.Logger
}

func NewJobs(platform *Platform, anchor *Anchor, index *Index, logger *logger.Logger) *Jobs {
	return &Jobs{
		platform: platform,
		anchor:   anchor,
		index:    index,
		now:      time.Now,
		logger:   logger,
	}
}

// Post anchors a new open job. The touch payment goes to the platform account
// itself since employer ids are not guaranteed to be funded accounts.
func (s *Jobs) Post(ctx context.Context, posting JobPosting) (PostedJob, error) {
	if err := posting.Validate(); err != nil {
		return PostedJob{}, err
	}

	job := model.JobRecord{
		ID:           uuid.NewString(),
		EmployerID:   posting.EmployerID,
		EmployerName: posting.EmployerName,
		Title:        posting.Title,
		WorkType:     posting.WorkType,
		Description:  posting.Description,
		Location:     posting.Location,
		Salary:       posting.Salary,
		IsLiveIn:     *posting.IsLiveIn,
		CreatedAt:    model.NewTime(s.now().UTC()),
		Status:       model.JobStatusOpen,
	}

	receipt, err := s.anchor.Anchor(ctx, s.platform.Address(), model.NamespaceJobs, job)
	if err != nil {
		return PostedJob{}, err
	}

	s.logger.Info("Jobs service: job posted",
		"job_id", job.ID,
		"employer_id", job.EmployerID,
		"key", receipt.Key)

	return PostedJob{
		JobRecord: job,
		StellarTx: receipt.TxHash,
		Message:   "Job posted successfully",
	}, nil
}

// List returns every job, newest first.
func (s *Jobs) List(ctx context.Context) ([]model.JobRecord, error) {
	listing, err := s.index.ListNamespace(ctx, s.platform.Address(), model.NamespaceJobs, Descending)
	if err != nil {
		return nil, err
	}
	return Decode[model.JobRecord](s.index, &listing), nil
}
